package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/budgetmate/account-service/internal/accounts"
	"github.com/budgetmate/account-service/internal/auth"
	"github.com/budgetmate/account-service/internal/config"
	"github.com/budgetmate/account-service/internal/database"
	"github.com/budgetmate/account-service/internal/logging"
	"github.com/budgetmate/account-service/internal/provider"
	"github.com/budgetmate/account-service/internal/server"
	"github.com/budgetmate/account-service/internal/verification"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "account-api",
		Short: "User account and authentication service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("token-ttl-seconds", defaults.GetInt("jwt.ttl_seconds"), "Bearer token TTL in seconds")
	cmd.PersistentFlags().Int("code-ttl-seconds", defaults.GetInt("verification.ttl_seconds"), "Verification code TTL in seconds")
	cmd.PersistentFlags().String("jwt-secret", "", "Token signing secret (overrides env)")
	cmd.PersistentFlags().String("google-client-id", defaults.GetString("google.client_id"), "Google OAuth client ID")
	cmd.PersistentFlags().String("google-client-secret", "", "Google OAuth client secret (overrides env)")
	cmd.PersistentFlags().String("google-redirect-uri", defaults.GetString("google.redirect_uri"), "Google OAuth redirect URI")
	cmd.PersistentFlags().String("kakao-client-id", defaults.GetString("kakao.client_id"), "Kakao OAuth client ID")
	cmd.PersistentFlags().String("kakao-redirect-uri", defaults.GetString("kakao.redirect_uri"), "Kakao OAuth redirect URI")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "jwt.ttl_seconds", "token-ttl-seconds")
	bindFlag(cmd, "verification.ttl_seconds", "code-ttl-seconds")
	bindFlag(cmd, "jwt.secret", "jwt-secret")
	bindFlag(cmd, "google.client_id", "google-client-id")
	bindFlag(cmd, "google.client_secret", "google-client-secret")
	bindFlag(cmd, "google.redirect_uri", "google-redirect-uri")
	bindFlag(cmd, "kakao.client_id", "kakao-client-id")
	bindFlag(cmd, "kakao.redirect_uri", "kakao-redirect-uri")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store, err := accounts.NewGormStore(db)
	if err != nil {
		return err
	}

	accountService, err := accounts.NewService(accounts.ServiceConfig{
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	tokenCodec, err := auth.NewTokenCodec(auth.TokenCodecConfig{
		SigningSecret: []byte(appConfig.JWTSecret),
		Issuer:        "account-service",
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	codeStore, err := verification.NewStore(verification.StoreConfig{
		Sender:  verification.NewLogSender(logger),
		CodeTTL: appConfig.CodeTTL,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	providerClient := &http.Client{Timeout: appConfig.ProviderTimeout}

	googleAdapter, err := provider.NewGoogle(provider.GoogleConfig{
		ClientID:     appConfig.Google.ClientID,
		ClientSecret: appConfig.Google.ClientSecret,
		RedirectURI:  appConfig.Google.RedirectURI,
		HTTPClient:   providerClient,
	})
	if err != nil {
		return err
	}

	kakaoAdapter, err := provider.NewKakao(provider.KakaoConfig{
		ClientID:    appConfig.Kakao.ClientID,
		RedirectURI: appConfig.Kakao.RedirectURI,
		HTTPClient:  providerClient,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Accounts:     accountService,
		Tokens:       tokenCodec,
		Verification: codeStore,
		Google:       googleAdapter,
		Kakao:        kakaoAdapter,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

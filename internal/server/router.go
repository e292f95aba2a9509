package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/budgetmate/account-service/internal/accounts"
	"github.com/budgetmate/account-service/internal/auth"
	"github.com/budgetmate/account-service/internal/provider"
	"github.com/budgetmate/account-service/internal/verification"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityContextKey = "account_identity"

var (
	errMissingAccountService = errors.New("account service dependency required")
	errMissingTokenCodec     = errors.New("token codec dependency required")
	errMissingVerification   = errors.New("verification store dependency required")
	errMissingProvider       = errors.New("provider adapter dependencies required")
)

// publicPaths lists routes the request authenticator skips entirely.
var publicPaths = map[string]struct{}{
	"/user/signup":         {},
	"/user/login":          {},
	"/user/send-code":      {},
	"/user/verify-code":    {},
	"/user/oauth/google":   {},
	"/user/oauth/kakao":    {},
	"/user/confirm-social": {},
}

// ProviderAdapter exchanges an authorization code for a normalized identity.
type ProviderAdapter interface {
	Provider() accounts.LoginMethod
	Exchange(ctx context.Context, authorizationCode string) (accounts.ExternalIdentity, error)
}

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	AccountID int64
	Email     string
	Roles     []string
}

// Dependencies wires the HTTP layer to the domain services.
type Dependencies struct {
	Accounts     *accounts.Service
	Tokens       *auth.TokenCodec
	Verification *verification.Store
	Google       ProviderAdapter
	Kakao        ProviderAdapter
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router for the account service.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Accounts == nil {
		return nil, errMissingAccountService
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenCodec
	}
	if deps.Verification == nil {
		return nil, errMissingVerification
	}
	if deps.Google == nil || deps.Kakao == nil {
		return nil, errMissingProvider
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{
		accounts:     deps.Accounts,
		tokens:       deps.Tokens,
		verification: deps.Verification,
		adapters: map[accounts.LoginMethod]ProviderAdapter{
			deps.Google.Provider(): deps.Google,
			deps.Kakao.Provider():  deps.Kakao,
		},
		logger: logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(handler.authenticate)

	user := router.Group("/user")
	user.POST("/signup", handler.handleSignup)
	user.POST("/login", handler.handleLogin)
	user.POST("/send-code", handler.handleSendCode)
	user.POST("/verify-code", handler.handleVerifyCode)
	user.GET("/oauth/google", handler.handleSocialLogin(accounts.LoginMethodGoogle))
	user.GET("/oauth/kakao", handler.handleSocialLogin(accounts.LoginMethodKakao))
	user.POST("/confirm-social", handler.handleConfirmSocial)
	user.GET("/me", requireIdentity, handler.handleMe)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	accounts     *accounts.Service
	tokens       *auth.TokenCodec
	verification *verification.Store
	adapters     map[accounts.LoginMethod]ProviderAdapter
	logger       *zap.Logger
}

// authenticate is the per-request gate. Allow-listed paths pass untouched.
// Elsewhere a valid bearer token attaches the caller's identity to the
// request context; a missing or invalid token attaches nothing and the
// request proceeds. Rejecting unauthenticated callers is the job of the
// policy layer on each protected route, not of this gate.
func (h *httpHandler) authenticate(c *gin.Context) {
	if _, open := publicPaths[c.FullPath()]; open {
		c.Next()
		return
	}

	token, ok := auth.FromHeader(c.GetHeader("Authorization"))
	if !ok {
		c.Next()
		return
	}
	if !h.tokens.Validate(token) {
		h.logger.Info("invalid bearer token ignored", zap.String("path", c.FullPath()))
		c.Next()
		return
	}

	claims, err := h.tokens.Claims(token)
	if err != nil {
		c.Next()
		return
	}
	c.Set(identityContextKey, Identity{
		AccountID: claims.AccountID,
		Email:     claims.Subject,
		Roles:     claims.Roles,
	})
	c.Next()
}

// requireIdentity is the fail-closed policy layer for protected routes.
func requireIdentity(c *gin.Context) {
	if _, ok := identityFromContext(c); !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "authentication required",
		})
		return
	}
	c.Next()
}

func identityFromContext(c *gin.Context) (Identity, bool) {
	value, exists := c.Get(identityContextKey)
	if !exists {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}

type signupRequestPayload struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	UserName string `json:"userName"`
}

func (h *httpHandler) handleSignup(c *gin.Context) {
	var request signupRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "email and password are required"})
		return
	}

	account, err := h.accounts.Signup(c.Request.Context(), request.Email, request.Password, request.UserName)
	if errors.Is(err, accounts.ErrDuplicateEmail) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duplicate_email", "message": "email already registered"})
		return
	}
	if err != nil {
		h.logger.Error("signup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup_failed", "message": "could not create account"})
		return
	}

	token, err := h.issueToken(account)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed", "message": "could not issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    accountPayload(account),
		"token":   token,
	})
}

type loginRequestPayload struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "email and password are required"})
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), request.Email, request.Password)
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		// Deliberately the same answer for unknown email and wrong password.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "message": "invalid email or password"})
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed", "message": "could not process login"})
		return
	}

	token, err := h.issueToken(account)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed", "message": "could not issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type emailRequestPayload struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *httpHandler) handleSendCode(c *gin.Context) {
	var request emailRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "a valid email is required"})
		return
	}

	registered, err := h.accounts.ExistsByEmail(c.Request.Context(), request.Email)
	if err != nil {
		h.logger.Error("email lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send_code_failed", "message": "could not send code"})
		return
	}
	if registered {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duplicate_email", "message": "email already registered"})
		return
	}

	if err := h.verification.Issue(c.Request.Context(), request.Email); err != nil {
		h.logger.Error("verification code issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send_code_failed", "message": "could not send code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "verification code sent"})
}

type verifyCodeRequestPayload struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

func (h *httpHandler) handleVerifyCode(c *gin.Context) {
	var request verifyCodeRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "email and code are required"})
		return
	}

	switch result := h.verification.Check(request.Email, request.Code); result {
	case verification.Verified:
		c.JSON(http.StatusOK, gin.H{"verified": true})
	case verification.NoRequest:
		c.JSON(http.StatusBadRequest, gin.H{"verified": false, "error": "no_request", "message": "no verification request for this email"})
	case verification.Expired:
		c.JSON(http.StatusBadRequest, gin.H{"verified": false, "error": "expired", "message": "verification code expired"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"verified": false, "error": "mismatch", "message": "verification code does not match"})
	}
}

func (h *httpHandler) handleSocialLogin(method accounts.LoginMethod) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.TrimSpace(c.Query("code"))
		if code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "authorization code is required"})
			return
		}

		adapter := h.adapters[method]
		identity, err := adapter.Exchange(c.Request.Context(), code)
		if err != nil {
			h.logger.Warn("provider exchange failed",
				zap.String("provider", string(method)), zap.Error(err))
			if errors.Is(err, provider.ErrCodeAlreadyUsed) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "code_already_used", "message": "authorization code already used, restart the login flow"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "provider_exchange_failed", "message": "social login failed, restart the login flow"})
			return
		}

		outcome, err := h.accounts.Reconcile(c.Request.Context(), identity)
		if err != nil {
			h.logger.Error("identity reconciliation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "social_login_failed", "message": "could not resolve account"})
			return
		}

		if outcome.ConsentRequired {
			c.JSON(http.StatusOK, gin.H{
				"requiresConsent": true,
				"email":           outcome.Account.Email,
				"userName":        outcome.Account.DisplayName,
			})
			return
		}

		token, err := h.issueToken(outcome.Account)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed", "message": "could not issue token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"accessToken": token,
			"email":       outcome.Account.Email,
			"userName":    outcome.Account.DisplayName,
		})
	}
}

type confirmSocialRequestPayload struct {
	Email      string `json:"email" binding:"required"`
	LoginType  string `json:"loginType" binding:"required"`
	ExternalID string `json:"externalId"`
}

func (h *httpHandler) handleConfirmSocial(c *gin.Context) {
	var request confirmSocialRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "email and loginType are required"})
		return
	}

	method, ok := accounts.ParseProvider(request.LoginType)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_login_type", "message": "unknown login type"})
		return
	}

	account, err := h.accounts.ConfirmLink(c.Request.Context(), request.Email, method, request.ExternalID)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account_not_found", "message": "no account for this email"})
		return
	}
	if errors.Is(err, accounts.ErrAlreadyLinked) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "already_linked", "message": "account is already bound to a provider"})
		return
	}
	if err != nil {
		h.logger.Error("confirm link failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "confirm_failed", "message": "could not link account"})
		return
	}

	token, err := h.issueToken(account)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed", "message": "could not issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken": token,
		"email":       account.Email,
		"userName":    account.DisplayName,
	})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	identity, _ := identityFromContext(c)

	account, err := h.accounts.FindByEmail(c.Request.Context(), identity.Email)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account_not_found", "message": "no account for this token"})
		return
	}
	if err != nil {
		h.logger.Error("profile lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_failed", "message": "could not load profile"})
		return
	}

	c.JSON(http.StatusOK, accountPayload(account))
}

func (h *httpHandler) issueToken(account accounts.Account) (string, error) {
	token, err := h.tokens.Issue(account.ID, account.Email, account.Roles)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		return "", err
	}
	return token, nil
}

func accountPayload(account accounts.Account) gin.H {
	return gin.H{
		"id":       account.ID,
		"email":    account.Email,
		"userName": account.DisplayName,
		"roles":    account.Roles,
	}
}

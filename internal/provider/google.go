package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/budgetmate/account-service/internal/accounts"
	"golang.org/x/oauth2"
)

const (
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleConfig configures the Google adapter. TokenURL and UserInfoURL
// default to the public Google endpoints and exist for tests.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TokenURL     string
	UserInfoURL  string
	HTTPClient   *http.Client
}

// Google exchanges Google authorization codes. The token call is a
// form-encoded POST carrying the client secret; the user-info response keeps
// id, email, and name at the top level.
type Google struct {
	conf        *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewGoogle constructs the Google adapter.
func NewGoogle(cfg GoogleConfig) (*Google, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURI == "" {
		return nil, errors.New("provider: google client id, secret, and redirect uri required")
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = googleTokenURL
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}
	return &Google{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
		},
		userInfoURL: userInfoURL,
		httpClient:  httpClientOrDefault(cfg.HTTPClient),
	}, nil
}

func (g *Google) Provider() accounts.LoginMethod {
	return accounts.LoginMethodGoogle
}

func (g *Google) Exchange(ctx context.Context, authorizationCode string) (accounts.ExternalIdentity, error) {
	token, err := exchangeToken(ctx, g.conf, g.httpClient, authorizationCode)
	if err != nil {
		return accounts.ExternalIdentity{}, err
	}

	var payload struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	err = fetchUserInfo(ctx, g.httpClient, g.userInfoURL, token.AccessToken, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("%w: decoding user info: %v", ErrExchangeFailed, err)
		}
		return nil
	})
	if err != nil {
		return accounts.ExternalIdentity{}, err
	}
	if payload.ID == "" || payload.Email == "" {
		return accounts.ExternalIdentity{}, fmt.Errorf("%w: user info missing id or email", ErrExchangeFailed)
	}

	return accounts.ExternalIdentity{
		Provider:    accounts.LoginMethodGoogle,
		Subject:     payload.ID,
		Email:       payload.Email,
		DisplayName: payload.Name,
	}, nil
}

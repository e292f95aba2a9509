// Package provider turns single-use OAuth authorization codes into normalized
// external identities, one adapter per identity provider.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/budgetmate/account-service/internal/accounts"
	"golang.org/x/oauth2"
)

// defaultTimeout bounds each outbound provider call; an unbounded wait is an
// availability risk.
const defaultTimeout = 10 * time.Second

var (
	// ErrExchangeFailed covers any non-success response at either exchange
	// step. The login attempt is aborted, never partially retried.
	ErrExchangeFailed = errors.New("provider: exchange failed")
	// ErrCodeAlreadyUsed reports a rejected or duplicate authorization code.
	// Authorization codes are single-use upstream, so a retry with the same
	// code must fail predictably.
	ErrCodeAlreadyUsed = errors.New("provider: authorization code already used")
)

// Adapter exchanges an authorization code for a normalized external identity
// via two sequential remote calls: code to access token, then access token to
// user info.
type Adapter interface {
	Provider() accounts.LoginMethod
	Exchange(ctx context.Context, authorizationCode string) (accounts.ExternalIdentity, error)
}

// exchangeToken runs the token-endpoint call through the adapter's HTTP
// client and classifies rejected codes.
func exchangeToken(ctx context.Context, conf *oauth2.Config, client *http.Client, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			if retrieveErr.ErrorCode == "invalid_grant" ||
				(retrieveErr.Response != nil && retrieveErr.Response.StatusCode == http.StatusBadRequest) {
				return nil, fmt.Errorf("%w: %v", ErrCodeAlreadyUsed, err)
			}
		}
		return nil, fmt.Errorf("%w: token endpoint: %v", ErrExchangeFailed, err)
	}
	return token, nil
}

// fetchUserInfo performs the bearer-authenticated user-info call and hands
// the body to the adapter-specific decoder.
func fetchUserInfo(ctx context.Context, client *http.Client, url, accessToken string, decode func(*http.Response) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: user-info endpoint: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: user-info endpoint returned status %d", ErrExchangeFailed, resp.StatusCode)
	}
	return decode(resp)
}

func httpClientOrDefault(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: defaultTimeout}
}

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/budgetmate/account-service/internal/accounts"
	"golang.org/x/oauth2"
)

const (
	kakaoTokenURL    = "https://kauth.kakao.com/oauth/token"
	kakaoUserInfoURL = "https://kapi.kakao.com/v2/user/me"
)

// KakaoConfig configures the Kakao adapter. Kakao authenticates the token
// call with the client id alone; there is no client secret.
type KakaoConfig struct {
	ClientID    string
	RedirectURI string
	TokenURL    string
	UserInfoURL string
	HTTPClient  *http.Client
}

// Kakao exchanges Kakao authorization codes. The user-info response carries a
// numeric id at the top level and nests email and nickname under the
// kakao_account object and its profile sub-object.
type Kakao struct {
	conf        *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewKakao constructs the Kakao adapter.
func NewKakao(cfg KakaoConfig) (*Kakao, error) {
	if cfg.ClientID == "" || cfg.RedirectURI == "" {
		return nil, errors.New("provider: kakao client id and redirect uri required")
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = kakaoTokenURL
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = kakaoUserInfoURL
	}
	return &Kakao{
		conf: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Endpoint:    oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
		},
		userInfoURL: userInfoURL,
		httpClient:  httpClientOrDefault(cfg.HTTPClient),
	}, nil
}

func (k *Kakao) Provider() accounts.LoginMethod {
	return accounts.LoginMethodKakao
}

func (k *Kakao) Exchange(ctx context.Context, authorizationCode string) (accounts.ExternalIdentity, error) {
	token, err := exchangeToken(ctx, k.conf, k.httpClient, authorizationCode)
	if err != nil {
		return accounts.ExternalIdentity{}, err
	}

	var payload struct {
		ID      int64 `json:"id"`
		Account struct {
			Email   string `json:"email"`
			Profile struct {
				Nickname string `json:"nickname"`
			} `json:"profile"`
		} `json:"kakao_account"`
	}
	err = fetchUserInfo(ctx, k.httpClient, k.userInfoURL, token.AccessToken, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("%w: decoding user info: %v", ErrExchangeFailed, err)
		}
		return nil
	})
	if err != nil {
		return accounts.ExternalIdentity{}, err
	}
	if payload.ID == 0 || payload.Account.Email == "" {
		return accounts.ExternalIdentity{}, fmt.Errorf("%w: user info missing id or email", ErrExchangeFailed)
	}

	return accounts.ExternalIdentity{
		Provider:    accounts.LoginMethodKakao,
		Subject:     strconv.FormatInt(payload.ID, 10),
		Email:       payload.Account.Email,
		DisplayName: payload.Account.Profile.Nickname,
	}, nil
}

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/budgetmate/account-service/internal/accounts"
	"github.com/budgetmate/account-service/internal/auth"
	"github.com/budgetmate/account-service/internal/server"
	"github.com/budgetmate/account-service/internal/verification"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	signingSecret   = "integration-secret"
	jsonContentType = "application/json"
)

type scriptedAdapter struct {
	method   accounts.LoginMethod
	identity accounts.ExternalIdentity
}

func (a scriptedAdapter) Provider() accounts.LoginMethod {
	return a.method
}

func (a scriptedAdapter) Exchange(context.Context, string) (accounts.ExternalIdentity, error) {
	return a.identity, nil
}

func buildHandler(t *testing.T, google, kakao server.ProviderAdapter) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:integration?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&accounts.Account{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	store, err := accounts.NewGormStore(db)
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	accountService, err := accounts.NewService(accounts.ServiceConfig{Store: store})
	if err != nil {
		t.Fatalf("failed to build account service: %v", err)
	}
	tokenCodec, err := auth.NewTokenCodec(auth.TokenCodecConfig{
		SigningSecret: []byte(signingSecret),
		Issuer:        "account-service",
		TokenTTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to build token codec: %v", err)
	}
	codeStore, err := verification.NewStore(verification.StoreConfig{
		Sender:       verification.NewLogSender(nil),
		GenerateCode: func() (string, error) { return "123456", nil },
	})
	if err != nil {
		t.Fatalf("failed to build verification store: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Accounts:     accountService,
		Tokens:       tokenCodec,
		Verification: codeStore,
		Google:       google,
		Kakao:        kakao,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

func postJSON(t *testing.T, handler http.Handler, path string, payload map[string]string, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to encode payload: %v", err)
	}
	request := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	request.Header.Set("Content-Type", jsonContentType)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	body := map[string]any{}
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
		}
	}
	return recorder, body
}

func getJSON(t *testing.T, handler http.Handler, path, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	request := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	body := map[string]any{}
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
		}
	}
	return recorder, body
}

func TestFullAccountLifecycle(t *testing.T) {
	google := scriptedAdapter{
		method: accounts.LoginMethodGoogle,
		identity: accounts.ExternalIdentity{
			Provider:    accounts.LoginMethodGoogle,
			Subject:     "g-lifecycle",
			Email:       "a@x.com",
			DisplayName: "Alice G",
		},
	}
	kakao := scriptedAdapter{method: accounts.LoginMethodKakao}
	handler := buildHandler(t, google, kakao)

	// Email ownership proof before signup.
	recorder, body := postJSON(t, handler, "/user/send-code", map[string]string{"email": "a@x.com"}, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("send-code failed: %d %v", recorder.Code, body)
	}
	recorder, body = postJSON(t, handler, "/user/verify-code",
		map[string]string{"email": "a@x.com", "code": "123456"}, "")
	if recorder.Code != http.StatusOK || body["verified"] != true {
		t.Fatalf("verify-code failed: %d %v", recorder.Code, body)
	}

	// Local signup and login.
	recorder, body = postJSON(t, handler, "/user/signup",
		map[string]string{"email": "a@x.com", "password": "p1", "userName": "Alice"}, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("signup failed: %d %v", recorder.Code, body)
	}
	recorder, body = postJSON(t, handler, "/user/login",
		map[string]string{"email": "a@x.com", "password": "p1"}, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("login failed: %d %v", recorder.Code, body)
	}
	loginToken, _ := body["token"].(string)
	if loginToken == "" {
		t.Fatalf("login did not return a token")
	}

	// Authenticated profile access.
	recorder, body = getJSON(t, handler, "/user/me", loginToken)
	if recorder.Code != http.StatusOK || body["email"] != "a@x.com" {
		t.Fatalf("profile fetch failed: %d %v", recorder.Code, body)
	}

	// Social login with the same email triggers the consent flow.
	recorder, body = getJSON(t, handler, "/user/oauth/google?code=code-1", "")
	if recorder.Code != http.StatusOK || body["requiresConsent"] != true {
		t.Fatalf("expected consent-required outcome: %d %v", recorder.Code, body)
	}

	recorder, body = postJSON(t, handler, "/user/confirm-social",
		map[string]string{"email": "a@x.com", "loginType": "google", "externalId": "g-lifecycle"}, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("confirm-social failed: %d %v", recorder.Code, body)
	}
	linkedToken, _ := body["accessToken"].(string)
	if linkedToken == "" {
		t.Fatalf("confirm-social did not return a token")
	}

	// A returning social login now proceeds without consent.
	recorder, body = getJSON(t, handler, "/user/oauth/google?code=code-2", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("returning social login failed: %d %v", recorder.Code, body)
	}
	if body["requiresConsent"] == true {
		t.Fatalf("returning social login must not require consent")
	}
	if accessToken, _ := body["accessToken"].(string); accessToken == "" {
		t.Fatalf("returning social login did not return a token")
	}

	// The link is one-way; a second confirmation fails.
	recorder, body = postJSON(t, handler, "/user/confirm-social",
		map[string]string{"email": "a@x.com", "loginType": "kakao"}, "")
	if recorder.Code != http.StatusBadRequest || body["error"] != "already_linked" {
		t.Fatalf("expected already_linked: %d %v", recorder.Code, body)
	}
}

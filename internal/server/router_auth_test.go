package server

import (
	"net/http"
	"testing"
)

func TestProtectedRouteWithoutTokenIsRejectedByPolicyLayer(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	recorder, body := env.do(t, http.MethodGet, "/user/me", nil, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	if body["error"] != "unauthorized" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestProtectedRouteWithInvalidTokenAttachesNoIdentity(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	// The gate swallows the bad token; the policy layer answers 401.
	recorder, body := env.do(t, http.MethodGet, "/user/me", nil,
		map[string]string{"Authorization": "Bearer not-a-real-token"})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	if body["error"] != "unauthorized" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestProtectedRouteWithValidTokenServesProfile(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	_, signupBody := env.do(t, http.MethodPost, "/user/signup",
		map[string]string{"email": "a@x.com", "password": "p1", "userName": "Alice"}, nil)
	token, _ := signupBody["token"].(string)
	if token == "" {
		t.Fatalf("signup did not return a token")
	}

	recorder, body := env.do(t, http.MethodGet, "/user/me", nil,
		map[string]string{"Authorization": "Bearer " + token})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d with body %v", recorder.Code, body)
	}
	if body["email"] != "a@x.com" {
		t.Fatalf("unexpected profile email %v", body["email"])
	}
	if body["userName"] != "Alice" {
		t.Fatalf("unexpected profile name %v", body["userName"])
	}
}

func TestProtectedRouteRejectsNonBearerScheme(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	recorder, _ := env.do(t, http.MethodGet, "/user/me", nil,
		map[string]string{"Authorization": "Basic dXNlcjpwYXNz"})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-bearer scheme, got %d", recorder.Code)
	}
}

func TestPublicPathsSkipAuthentication(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	// A garbage Authorization header must not disturb allow-listed paths.
	recorder, _ := env.do(t, http.MethodPost, "/user/login",
		map[string]string{"email": "a@x.com", "password": "p1"},
		map[string]string{"Authorization": "Bearer garbage"})
	if recorder.Code == http.StatusBadRequest {
		t.Fatalf("login must not require authentication")
	}
}

func TestIdentityDoesNotLeakBetweenRequests(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	_, signupBody := env.do(t, http.MethodPost, "/user/signup",
		map[string]string{"email": "a@x.com", "password": "p1"}, nil)
	token, _ := signupBody["token"].(string)

	recorder, _ := env.do(t, http.MethodGet, "/user/me", nil,
		map[string]string{"Authorization": "Bearer " + token})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected authenticated request to succeed, got %d", recorder.Code)
	}

	// The follow-up request carries no token and must see no identity.
	recorder, _ = env.do(t, http.MethodGet, "/user/me", nil, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("identity leaked into an unauthenticated request: %d", recorder.Code)
	}
}

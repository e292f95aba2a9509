package accounts

import (
	"strings"
	"time"
)

// DefaultRole is granted to every account at creation.
const DefaultRole = "ROLE_USER"

// LoginMethod tags how an account authenticates: a local password or a
// specific external identity provider.
type LoginMethod string

const (
	LoginMethodLocal  LoginMethod = "local"
	LoginMethodGoogle LoginMethod = "google"
	LoginMethodKakao  LoginMethod = "kakao"
)

// ParseProvider maps a client-supplied login-method name onto one of the
// supported external providers. Local is not a provider.
func ParseProvider(value string) (LoginMethod, bool) {
	switch LoginMethod(strings.ToLower(strings.TrimSpace(value))) {
	case LoginMethodGoogle:
		return LoginMethodGoogle, true
	case LoginMethodKakao:
		return LoginMethodKakao, true
	default:
		return "", false
	}
}

// Account is the canonical identity record. Email is globally unique. The
// login-method and external id stay consistent: local accounts carry no
// external id, provider-bound accounts always do.
type Account struct {
	ID           int64       `gorm:"column:id;primaryKey;autoIncrement"`
	Email        string      `gorm:"column:email;size:320;not null;uniqueIndex"`
	PasswordHash string      `gorm:"column:password_hash;size:128"`
	DisplayName  string      `gorm:"column:display_name;size:320"`
	LoginMethod  LoginMethod `gorm:"column:login_method;size:32;not null"`
	ExternalID   string      `gorm:"column:external_id;size:190;index"`
	Roles        []string    `gorm:"column:roles;serializer:json"`
	CreatedAt    time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing accounts.
func (Account) TableName() string {
	return "accounts"
}

// IsLocal reports whether the account still authenticates with a password.
func (a Account) IsLocal() bool {
	return a.LoginMethod == LoginMethodLocal
}

// ExternalIdentity is the provider-agnostic identity produced by a provider
// exchange. It is transient and never persisted directly.
type ExternalIdentity struct {
	Provider    LoginMethod
	Subject     string
	Email       string
	DisplayName string
}

// SocialLoginOutcome carries the resolved or candidate account of a social
// login attempt. When ConsentRequired is set no token may be issued until the
// link is explicitly confirmed.
type SocialLoginOutcome struct {
	Account         Account
	ConsentRequired bool
}

package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/budgetmate/account-service/internal/auth"
	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned for any email/password mismatch at login.
// It intentionally never distinguishes which of the two was wrong.
var ErrInvalidCredentials = errors.New("accounts: invalid email or password")

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Store  Store
	Logger *zap.Logger
	Clock  func() time.Time
}

// Service owns account creation, password login, and the reconciliation of
// external identities onto durable accounts.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("accounts: store required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: cfg.Store, logger: logger, now: clock}, nil
}

// Signup creates a local account with a hashed password and the default role.
func (s *Service) Signup(ctx context.Context, email, password, displayName string) (Account, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return Account{}, err
	}

	account := Account{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		LoginMethod:  LoginMethodLocal,
		Roles:        []string{DefaultRole},
	}
	if err := s.store.Save(ctx, &account); err != nil {
		return Account{}, err
	}

	s.logger.Info("account created",
		zap.Int64("account_id", account.ID),
		zap.String("login_method", string(account.LoginMethod)))
	return account, nil
}

// Authenticate verifies a local password login. Unknown email and wrong
// password collapse to the same ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	account, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}
	if account.PasswordHash == "" || !auth.PasswordMatches(password, account.PasswordHash) {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// FindByEmail exposes account lookup for the profile and confirm-link paths.
func (s *Service) FindByEmail(ctx context.Context, email string) (Account, error) {
	return s.store.FindByEmail(ctx, email)
}

// ExistsByEmail reports whether an email is already registered.
func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.store.ExistsByEmail(ctx, email)
}

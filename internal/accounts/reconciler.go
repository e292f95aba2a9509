package accounts

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrAlreadyLinked is returned when a confirm-link call targets an account
// that is no longer a local account.
var ErrAlreadyLinked = errors.New("accounts: account already bound to a provider")

// Reconcile maps a normalized external identity onto a durable account:
//
//  1. A known (provider, subject) pair is a returning social user.
//  2. A matching email on a local account needs explicit consent before
//     linking, so a silent takeover through a matching provider email is
//     impossible.
//  3. A matching email on another provider's account logs straight in.
//  4. Otherwise a fresh provider-bound account is created.
func (s *Service) Reconcile(ctx context.Context, identity ExternalIdentity) (SocialLoginOutcome, error) {
	account, err := s.store.FindByExternalID(ctx, identity.Subject, identity.Provider)
	if err == nil {
		return SocialLoginOutcome{Account: account}, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return SocialLoginOutcome{}, err
	}

	account, err = s.store.FindByEmail(ctx, identity.Email)
	if err == nil {
		if account.IsLocal() {
			return SocialLoginOutcome{Account: account, ConsentRequired: true}, nil
		}
		return SocialLoginOutcome{Account: account}, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return SocialLoginOutcome{}, err
	}

	account = Account{
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		LoginMethod: identity.Provider,
		ExternalID:  identity.Subject,
		Roles:       []string{DefaultRole},
	}
	if err := s.store.Save(ctx, &account); err != nil {
		return SocialLoginOutcome{}, err
	}

	s.logger.Info("account created",
		zap.Int64("account_id", account.ID),
		zap.String("login_method", string(account.LoginMethod)))
	return SocialLoginOutcome{Account: account}, nil
}

// ConfirmLink performs the single state transition an account may undergo:
// local to provider-bound, one way, only after the user explicitly confirmed
// a consent-required outcome. The account is re-fetched so a concurrent link
// surfaces as ErrAlreadyLinked instead of a second overwrite.
func (s *Service) ConfirmLink(ctx context.Context, email string, provider LoginMethod, externalID string) (Account, error) {
	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return Account{}, err
	}
	if !account.IsLocal() {
		return Account{}, ErrAlreadyLinked
	}

	account.LoginMethod = provider
	account.ExternalID = externalID
	if err := s.store.Save(ctx, &account); err != nil {
		return Account{}, err
	}

	s.logger.Info("account linked",
		zap.Int64("account_id", account.ID),
		zap.String("login_method", string(account.LoginMethod)))
	return account, nil
}

package accounts

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("accounts: account not found")
	ErrDuplicateEmail  = errors.New("accounts: email already registered")
)

// Store abstracts account persistence. Save assigns the id and timestamps on
// first save and must fail with ErrDuplicateEmail rather than overwrite when
// an email is already taken.
type Store interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByExternalID(ctx context.Context, externalID string, provider LoginMethod) (Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, account *Account) error
}

// GormStore implements Store on a gorm connection.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps the provided database connection.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("accounts: database connection required")
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (s *GormStore) FindByExternalID(ctx context.Context, externalID string, provider LoginMethod) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).
		Where("external_id = ? AND login_method = ?", externalID, provider).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (s *GormStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Account{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) Save(ctx context.Context, account *Account) error {
	if account == nil {
		return fmt.Errorf("accounts: account required")
	}
	if account.ID == 0 {
		taken, err := s.ExistsByEmail(ctx, account.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateEmail
		}
		err = s.db.WithContext(ctx).Create(account).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Unique index on email backstops the racy window between the
			// existence check and the insert.
			return ErrDuplicateEmail
		}
		return err
	}
	return s.db.WithContext(ctx).Save(account).Error
}

// Package verification issues and checks short-lived email-ownership codes
// used during signup.
package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCodeTTL = 5 * time.Minute
	codeUpperBound = 1_000_000
)

// Result enumerates the outcomes of a code check.
type Result int

const (
	// Verified means the submitted code matched and the entry was consumed.
	Verified Result = iota
	// NoRequest means no live code exists for the email.
	NoRequest
	// Expired means the code outlived its window; the entry was removed and
	// a fresh code must be requested.
	Expired
	// Mismatch means the code differed; the entry survives for a retry
	// within the window.
	Mismatch
)

func (r Result) String() string {
	switch r {
	case Verified:
		return "verified"
	case NoRequest:
		return "no_request"
	case Expired:
		return "expired"
	case Mismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Sender delivers a verification code to its recipient. Delivery is an
// external collaborator; the store never exposes codes to API callers.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type entry struct {
	code      string
	createdAt time.Time
}

// StoreConfig configures the verification-code store.
type StoreConfig struct {
	Sender       Sender
	CodeTTL      time.Duration
	EmailSubject string
	GenerateCode func() (string, error)
	Clock        func() time.Time
	Logger       *zap.Logger
}

// Store keeps at most one live code per email in a concurrency-safe map.
// A new issue overwrites any prior entry for the same email.
type Store struct {
	mu       sync.Mutex
	entries  map[string]entry
	sender   Sender
	codeTTL  time.Duration
	subject  string
	generate func() (string, error)
	clock    func() time.Time
	logger   *zap.Logger
}

// NewStore constructs the store with sane defaults.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Sender == nil {
		return nil, fmt.Errorf("verification: sender required")
	}
	ttl := cfg.CodeTTL
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	subject := cfg.EmailSubject
	if subject == "" {
		subject = "Email verification code"
	}
	generate := cfg.GenerateCode
	if generate == nil {
		generate = randomCode
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		entries:  make(map[string]entry),
		sender:   cfg.Sender,
		codeTTL:  ttl,
		subject:  subject,
		generate: generate,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Issue generates a fresh code for the email, stores it, and hands it to the
// sender for delivery. Any prior live code for the email is overwritten.
func (s *Store) Issue(ctx context.Context, email string) error {
	code, err := s.generate()
	if err != nil {
		return err
	}

	if err := s.sender.Send(ctx, email, s.subject, "Verification code: "+code); err != nil {
		s.logger.Error("verification code delivery failed", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.entries[email] = entry{code: code, createdAt: s.clock()}
	s.mu.Unlock()

	s.logger.Info("verification code issued", zap.String("email", email))
	return nil
}

// Check compares the submitted code against the live entry for the email.
// The entry is consumed on a match and dropped on expiry; a mismatch leaves
// it intact so the user may retry until the window closes.
func (s *Store) Check(email, submittedCode string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.entries[email]
	if !ok {
		return NoRequest
	}
	if s.clock().Sub(live.createdAt) > s.codeTTL {
		delete(s.entries, email)
		return Expired
	}
	if live.code != submittedCode {
		return Mismatch
	}
	delete(s.entries, email)
	return Verified
}

// randomCode draws a 6-digit zero-padded numeric code.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeUpperBound))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Package store defines the persistence collaborators for transactions and
// password profiles. The core pipeline never talks to storage directly; it
// hands finished batches to whichever implementation was wired at startup.
package store

import (
	"context"
	"errors"

	"github.com/finlens/statement-insights/internal/domain"
)

// ErrNotFound is returned when a keyed lookup has no match.
var ErrNotFound = errors.New("store: not found")

// TransactionStore persists extracted transactions per user.
type TransactionStore interface {
	// SaveBatch appends a batch of transactions to the user's history.
	SaveBatch(ctx context.Context, userID string, txns []domain.Transaction) error

	// List returns all stored transactions for the user.
	List(ctx context.Context, userID string) ([]domain.Transaction, error)

	// DeleteAll removes the user's entire history.
	DeleteAll(ctx context.Context, userID string) error
}

// ProfileStore keeps named password profiles per user. Secrets are opaque
// strings here; whether they are encrypted is the caller's concern.
type ProfileStore interface {
	Save(ctx context.Context, userID string, profile domain.PasswordProfile) error
	List(ctx context.Context, userID string) ([]domain.PasswordProfile, error)
	Get(ctx context.Context, userID, profileID string) (domain.PasswordProfile, error)
	Delete(ctx context.Context, userID, profileID string) error
}

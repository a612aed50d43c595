// Package gcstore persists transaction history in a Google Cloud Storage
// bucket, one JSON object per user under transactions/<userID>.json.
// It assumes Application Default Credentials are configured.
package gcstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/finlens/statement-insights/internal/domain"
	"github.com/finlens/statement-insights/internal/store"
)

const objectPrefix = "transactions/"

type Store struct {
	client *storage.Client
	bucket string
	log    zerolog.Logger
}

func NewStore(ctx context.Context, bucket string, log zerolog.Logger) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket, log: log}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func objectName(userID string) string {
	return objectPrefix + userID + ".json"
}

// SaveBatch reads the user's existing history, appends the new batch, and
// writes the object back. Statement uploads are sequential per user, so the
// read-modify-write is not raced in practice.
func (s *Store) SaveBatch(ctx context.Context, userID string, txns []domain.Transaction) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}

	existing, err := s.List(ctx, userID)
	if err != nil {
		return err
	}
	combined := append(existing, txns...)

	data, err := json.Marshal(combined)
	if err != nil {
		return fmt.Errorf("marshal transactions: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName(userID)).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	s.log.Debug().
		Str("user", userID).
		Int("saved", len(txns)).
		Int("total", len(combined)).
		Msg("Transaction history written")
	return nil
}

func (s *Store) List(ctx context.Context, userID string) ([]domain.Transaction, error) {
	r, err := s.client.Bucket(s.bucket).Object(objectName(userID)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}

	var txns []domain.Transaction
	if err := json.Unmarshal(data, &txns); err != nil {
		return nil, fmt.Errorf("decode stored transactions: %w", err)
	}
	return txns, nil
}

// DeleteAll removes every stored object under the user's prefix. Today that
// is a single JSON blob, but the listing keeps older layouts cleanable.
func (s *Store) DeleteAll(ctx context.Context, userID string) error {
	bkt := s.client.Bucket(s.bucket)
	it := bkt.Objects(ctx, &storage.Query{Prefix: objectPrefix + userID})

	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("list objects: %w", err)
		}
		if err := bkt.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("delete object %s: %w", attrs.Name, err)
		}
	}
	return nil
}

var _ store.TransactionStore = (*Store)(nil)

// Package memory holds transactions and password profiles in process memory.
// It is the session fallback when no bucket is configured, and the backstop
// when a persistent save fails. Data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/finlens/statement-insights/internal/domain"
	"github.com/finlens/statement-insights/internal/store"
)

// Store keeps per-user transaction history. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	txns map[string][]domain.Transaction
}

func NewStore() *Store {
	return &Store{txns: make(map[string][]domain.Transaction)}
}

func (s *Store) SaveBatch(_ context.Context, userID string, txns []domain.Transaction) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy so later caller mutations cannot reach stored state.
	s.txns[userID] = append(s.txns[userID], append([]domain.Transaction(nil), txns...)...)
	return nil
}

func (s *Store) List(_ context.Context, userID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.txns[userID]
	out := make([]domain.Transaction, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *Store) DeleteAll(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.txns, userID)
	return nil
}

// ProfileStore keeps per-user password profiles. Safe for concurrent use.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]map[string]domain.PasswordProfile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]map[string]domain.PasswordProfile)}
}

func (s *ProfileStore) Save(_ context.Context, userID string, profile domain.PasswordProfile) error {
	if profile.ID == "" {
		return fmt.Errorf("profile ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profiles[userID] == nil {
		s.profiles[userID] = make(map[string]domain.PasswordProfile)
	}
	s.profiles[userID][profile.ID] = profile
	return nil
}

func (s *ProfileStore) List(_ context.Context, userID string) ([]domain.PasswordProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PasswordProfile, 0, len(s.profiles[userID]))
	for _, p := range s.profiles[userID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *ProfileStore) Get(_ context.Context, userID, profileID string) (domain.PasswordProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[userID][profileID]
	if !ok {
		return domain.PasswordProfile{}, store.ErrNotFound
	}
	return profile, nil
}

func (s *ProfileStore) Delete(_ context.Context, userID, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[userID][profileID]; !ok {
		return store.ErrNotFound
	}
	delete(s.profiles[userID], profileID)
	return nil
}

var (
	_ store.TransactionStore = (*Store)(nil)
	_ store.ProfileStore     = (*ProfileStore)(nil)
)

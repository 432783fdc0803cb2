// Package cache decorates a storage.Store with an in-memory LRU of users.
//
// Users never change after creation, so a cached copy cannot go stale.
// Groups are always read through to the underlying store.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mmynk/travelmatch/internal/models"
	"github.com/mmynk/travelmatch/internal/storage"
)

// DefaultSize is the number of users kept when no size is given.
const DefaultSize = 1024

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store serves GetUsers from an LRU and delegates everything else.
type Store struct {
	storage.Store
	users *lru.Cache[string, models.User]
}

// New wraps inner with a user cache holding up to size entries.
func New(inner storage.Store, size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	users, err := lru.New[string, models.User](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create user cache: %w", err)
	}
	return &Store{Store: inner, users: users}, nil
}

// CreateUser stores the user and caches it.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.Store.CreateUser(ctx, user); err != nil {
		return err
	}
	s.users.Add(user.ID, *user)
	return nil
}

// GetUsers answers from the cache and fetches only the misses.
func (s *Store) GetUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	found := make(map[string]*models.User, len(ids))
	var misses []string
	for _, id := range ids {
		if user, ok := s.users.Get(id); ok {
			found[id] = &user
			continue
		}
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		fetched, err := s.Store.GetUsers(ctx, misses)
		if err != nil {
			return nil, err
		}
		for _, user := range fetched {
			s.users.Add(user.ID, *user)
			found[user.ID] = user
		}
	}

	return storage.OrderUsers(ids, found), nil
}

// Len returns the number of cached users.
func (s *Store) Len() int {
	return s.users.Len()
}

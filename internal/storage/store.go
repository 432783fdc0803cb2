// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/travelmatch/internal/models"
)

var (
	// ErrNotFound is returned when the requested group does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrVersionConflict is returned by AppendMember when the group changed
	// since the caller read it.
	ErrVersionConflict = errors.New("storage: version conflict")
)

// Store defines the interface for user and group storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, MongoDB)
// without changing the matcher.
//
// Errors other than ErrNotFound and ErrVersionConflict mean the store is
// unreachable or a write failed.
type Store interface {
	// CreateUser persists a new user.
	// The user.ID and user.CreatedAt fields will be populated by the store.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUsers resolves user IDs in the order given.
	// IDs that don't exist are omitted from the result.
	GetUsers(ctx context.Context, ids []string) ([]*models.User, error)

	// CreateGroup persists a new group with its initial members.
	// The group.ID, group.Version and group.CreatedAt fields will be populated by the store.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group by its ID.
	// Returns ErrNotFound if the group does not exist.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroups returns every group in creation order.
	ListGroups(ctx context.Context) ([]*models.Group, error)

	// ListGroupsByMember returns every group containing userID, in creation order.
	ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error)

	// AppendMember adds userID to the group if its version still equals
	// expectedVersion, and returns the updated group.
	// Returns ErrVersionConflict if another writer got there first and
	// ErrNotFound if the group does not exist.
	AppendMember(ctx context.Context, groupID string, expectedVersion int64, userID string) (*models.Group, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// OrderUsers arranges users in the order of ids, dropping ids with no user.
// Backends that fetch with an unordered IN query use it to honor GetUsers' contract.
func OrderUsers(ids []string, found map[string]*models.User) []*models.User {
	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := found[id]; ok {
			users = append(users, user)
		}
	}
	return users
}

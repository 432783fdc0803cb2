package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/travelmatch/internal/models"
	"github.com/mmynk/travelmatch/internal/storage"
)

// CreateUser inserts a new user into the database.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	// Generate ID if not set
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}

	query := `
		INSERT INTO users (id, name, phone, email, arrival_time, location, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Phone,
		user.Email,
		formatTime(user.ArrivalTime),
		user.Location,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUsers retrieves multiple users by their IDs, in the order given.
// Users that don't exist are omitted from the result.
func (s *SQLiteStore) GetUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	// Build the IN clause with placeholders
	query := `
		SELECT id, name, phone, email, arrival_time, location, created_at
		FROM users
		WHERE id IN (?` + repeatPlaceholder(len(ids)-1) + `)`

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by IDs: %w", err)
	}
	defer rows.Close()

	found := make(map[string]*models.User, len(ids))
	for rows.Next() {
		user := &models.User{}
		var arrival string
		if err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Phone,
			&user.Email,
			&arrival,
			&user.Location,
			&user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if user.ArrivalTime, err = parseTime(arrival); err != nil {
			return nil, err
		}
		found[user.ID] = user
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return storage.OrderUsers(ids, found), nil
}

// repeatPlaceholder returns a string of ", ?" repeated n times.
// Used for building IN clauses with multiple placeholders.
func repeatPlaceholder(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(", ?", n)
}

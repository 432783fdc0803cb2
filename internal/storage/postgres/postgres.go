// Package postgres provides a PostgreSQL-backed implementation of the storage.Store interface.
//
// Groups keep their members in a TEXT[] column so an append is a single
// conditional UPDATE, the same shape as a document store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"                // registers the "postgres" driver

	"github.com/mmynk/travelmatch/internal/models"
	"github.com/mmynk/travelmatch/internal/storage"
)

// DefaultDriver is the database/sql driver used when none is configured.
const DefaultDriver = "pgx"

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    phone TEXT NOT NULL,
    email TEXT NOT NULL,
    arrival_time TIMESTAMPTZ NOT NULL,
    location TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    seq BIGSERIAL UNIQUE,
    id TEXT PRIMARY KEY,
    members TEXT[] NOT NULL,
    arrival_time TIMESTAMPTZ NOT NULL,
    location TEXT NOT NULL,
    version BIGINT NOT NULL DEFAULT 1,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_groups_members ON groups USING GIN (members);
`

const groupColumns = "id, members, arrival_time, location, version, created_at"

// Store implements storage.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New opens a connection with the given driver ("pgx" or "postgres") and
// runs migrations.
func New(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver == "" {
		driver = DefaultDriver
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}

	query := `
		INSERT INTO users (id, name, phone, email, arrival_time, location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Phone, user.Email, user.ArrivalTime, user.Location, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUsers retrieves users by ID, in the order given.
// Users that don't exist are omitted from the result.
func (s *Store) GetUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	query := `
		SELECT id, name, phone, email, arrival_time, location, created_at
		FROM users
		WHERE id = ANY($1)
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get users by IDs: %w", err)
	}
	defer rows.Close()

	found := make(map[string]*models.User, len(ids))
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Name, &user.Phone, &user.Email,
			&user.ArrivalTime, &user.Location, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		found[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return storage.OrderUsers(ids, found), nil
}

// CreateGroup inserts a new group with its initial members.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}
	group.Version = 1

	members := group.Members
	if members == nil {
		members = []string{}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (id, members, arrival_time, location, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		group.ID, pq.Array(members), group.ArrivalTime, group.Location, group.Version, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	return nil
}

// GetGroup retrieves a group by ID.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+groupColumns+" FROM groups WHERE id = $1", groupID)
	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// ListGroups retrieves all groups in creation order.
func (s *Store) ListGroups(ctx context.Context) ([]*models.Group, error) {
	return s.queryGroups(ctx, "SELECT "+groupColumns+" FROM groups ORDER BY seq")
}

// ListGroupsByMember retrieves all groups containing the user.
func (s *Store) ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error) {
	return s.queryGroups(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE members @> ARRAY[$1]::TEXT[] ORDER BY seq",
		userID,
	)
}

// AppendMember appends a member in one conditional UPDATE guarded by the version.
func (s *Store) AppendMember(ctx context.Context, groupID string, expectedVersion int64, userID string) (*models.Group, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE groups
		 SET members = array_append(members, $1), version = version + 1
		 WHERE id = $2 AND version = $3
		 RETURNING `+groupColumns,
		userID, groupID, expectedVersion,
	)

	group, err := scanGroup(row)
	if err == nil {
		return group, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to append group member: %w", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)", groupID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check group: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return nil, fmt.Errorf("group %s at version %d: %w", groupID, expectedVersion, storage.ErrVersionConflict)
}

func (s *Store) queryGroups(ctx context.Context, query string, args ...any) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	return groups, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*models.Group, error) {
	group := &models.Group{}
	var members pq.StringArray
	if err := row.Scan(&group.ID, &members, &group.ArrivalTime, &group.Location,
		&group.Version, &group.CreatedAt); err != nil {
		return nil, err
	}
	group.Members = []string(members)
	return group, nil
}

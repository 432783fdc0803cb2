package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/travelmatch/internal/models"
	"github.com/mmynk/travelmatch/internal/storage"
)

// CreateGroup persists a new group and its initial members.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	// Generate ID if not set
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}
	group.Version = 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO groups (id, arrival_time, location, version, created_at) VALUES (?, ?, ?, ?, ?)",
		group.ID, formatTime(group.ArrivalTime), group.Location, group.Version, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	for i, userID := range group.Members {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO group_members (group_id, user_id, position) VALUES (?, ?, ?)",
			group.ID, userID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetGroup retrieves a group by ID, including its members.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	groups, err := listGroups(ctx, s.db, "WHERE g.id = ?", groupID)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return groups[0], nil
}

// ListGroups retrieves all groups in creation order.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	return listGroups(ctx, s.db, "")
}

// ListGroupsByMember retrieves all groups containing the given user.
func (s *SQLiteStore) ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error) {
	return listGroups(ctx, s.db,
		"WHERE g.id IN (SELECT group_id FROM group_members WHERE user_id = ?)",
		userID,
	)
}

// AppendMember adds a member to a group whose version still matches expectedVersion.
func (s *SQLiteStore) AppendMember(ctx context.Context, groupID string, expectedVersion int64, userID string) (*models.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"UPDATE groups SET version = version + 1 WHERE id = ? AND version = ?",
		groupID, expectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bump group version: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM groups WHERE id = ?", groupID).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to check group: %w", err)
		}
		if count == 0 {
			return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("group %s at version %d: %w", groupID, expectedVersion, storage.ErrVersionConflict)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, position)
		 VALUES (?, ?, (SELECT COUNT(*) FROM group_members WHERE group_id = ?))`,
		groupID, userID, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert group member: %w", err)
	}

	groups, err := listGroups(ctx, tx, "WHERE g.id = ?", groupID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return groups[0], nil
}

// listGroups loads groups matching the filter in insertion order and attaches
// their members. The filter may reference the groups table as "g".
func listGroups(ctx context.Context, q querier, filter string, args ...any) ([]*models.Group, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT g.id, g.arrival_time, g.location, g.version, g.created_at FROM groups g "+
			filter+" ORDER BY g.rowid",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var groups []*models.Group
	byID := make(map[string]*models.Group)
	for rows.Next() {
		group := &models.Group{}
		var arrival string
		if err := rows.Scan(&group.ID, &arrival, &group.Location, &group.Version, &group.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		if group.ArrivalTime, err = parseTime(arrival); err != nil {
			rows.Close()
			return nil, err
		}
		groups = append(groups, group)
		byID[group.ID] = group
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	if len(groups) == 0 {
		return groups, nil
	}

	// Rows must be closed before the next query: the pool has a single connection.
	memberRows, err := q.QueryContext(ctx,
		"SELECT m.group_id, m.user_id FROM group_members m JOIN groups g ON g.id = m.group_id "+
			filter+" ORDER BY m.group_id, m.position",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var groupID, userID string
		if err := memberRows.Scan(&groupID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		if group, ok := byID[groupID]; ok {
			group.Members = append(group.Members, userID)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group members: %w", err)
	}

	return groups, nil
}

package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/travelmatch/internal/models"
	"github.com/mmynk/travelmatch/internal/storage"
	"github.com/mmynk/travelmatch/internal/storage/storetest"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		return newTestStore(t)
	})
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	t.Run("New creates parent directories", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
		s, err := New(dbPath)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer s.Close()

		if _, err := os.Stat(dbPath); err != nil {
			t.Errorf("Expected database file to exist: %v", err)
		}
	})

	t.Run("Arrival time keeps zone offset", func(t *testing.T) {
		zone := time.FixedZone("EDT", -4*60*60)
		user := &models.User{
			Name:        "Zoe",
			ArrivalTime: time.Date(2026, 10, 17, 6, 0, 0, 0, zone),
			Location:    "AIRPORT_A",
		}
		if err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}

		users, err := store.GetUsers(ctx, []string{user.ID})
		if err != nil {
			t.Fatalf("GetUsers failed: %v", err)
		}
		if len(users) != 1 {
			t.Fatalf("Expected 1 user, got %d", len(users))
		}
		if _, offset := users[0].ArrivalTime.Zone(); offset != -4*60*60 {
			t.Errorf("Offset mismatch: got %d, want %d", offset, -4*60*60)
		}
	})

	t.Run("User belongs to at most one group", func(t *testing.T) {
		a := &models.User{Name: "A", ArrivalTime: time.Now(), Location: "X"}
		b := &models.User{Name: "B", ArrivalTime: time.Now(), Location: "X"}
		for _, u := range []*models.User{a, b} {
			if err := store.CreateUser(ctx, u); err != nil {
				t.Fatalf("CreateUser failed: %v", err)
			}
		}

		first := &models.Group{Members: []string{a.ID}, ArrivalTime: a.ArrivalTime, Location: "X"}
		if err := store.CreateGroup(ctx, first); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		second := &models.Group{Members: []string{b.ID}, ArrivalTime: b.ArrivalTime, Location: "X"}
		if err := store.CreateGroup(ctx, second); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}

		if _, err := store.AppendMember(ctx, second.ID, second.Version, a.ID); err == nil {
			t.Error("Expected error appending a user who already has a group")
		}
	})

	t.Run("Groups list in insertion order despite clock skew", func(t *testing.T) {
		s := newTestStore(t)
		defer s.Close()

		var ids []string
		for i, createdAt := range []int64{2000, 1000} {
			u := &models.User{Name: "Skew", ArrivalTime: time.Now(), Location: "Y"}
			if err := s.CreateUser(ctx, u); err != nil {
				t.Fatalf("CreateUser %d failed: %v", i, err)
			}
			g := &models.Group{Members: []string{u.ID}, ArrivalTime: u.ArrivalTime, Location: "Y", CreatedAt: createdAt}
			if err := s.CreateGroup(ctx, g); err != nil {
				t.Fatalf("CreateGroup %d failed: %v", i, err)
			}
			ids = append(ids, g.ID)
		}

		groups, err := s.ListGroups(ctx)
		if err != nil {
			t.Fatalf("ListGroups failed: %v", err)
		}
		if len(groups) != 2 {
			t.Fatalf("Expected 2 groups, got %d", len(groups))
		}
		if groups[0].ID != ids[0] || groups[1].ID != ids[1] {
			t.Errorf("Order mismatch: got [%s %s], want %v", groups[0].ID, groups[1].ID, ids)
		}
		if groups[0].CreatedAt != 2000 {
			t.Errorf("CreatedAt mismatch: got %d, want 2000", groups[0].CreatedAt)
		}
	})

	t.Run("Membership requires an existing user", func(t *testing.T) {
		group := &models.Group{Members: []string{"ghost"}, ArrivalTime: time.Now(), Location: "X"}
		if err := store.CreateGroup(ctx, group); err == nil {
			t.Error("Expected foreign key error for unknown member")
		}
	})
}

func TestRepeatPlaceholder(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{-1, ""},
		{0, ""},
		{1, ", ?"},
		{3, ", ?, ?, ?"},
	}

	for _, tt := range tests {
		if got := repeatPlaceholder(tt.n); got != tt.want {
			t.Errorf("repeatPlaceholder(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

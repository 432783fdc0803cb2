// Package storetest is a conformance suite shared by every storage.Store backend.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/travelmatch/internal/models"
	"github.com/mmynk/travelmatch/internal/storage"
)

// Factory returns an empty store. The suite closes it when the subtest ends.
type Factory func(t *testing.T) storage.Store

var arrival = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

// Run exercises the storage.Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store storage.Store)
	}{
		{"CreateUser assigns ID", testCreateUser},
		{"GetUsers keeps order and drops missing", testGetUsers},
		{"CreateGroup and GetGroup", testCreateGroup},
		{"GetGroup unknown ID", testGetGroupNotFound},
		{"ListGroups in creation order", testListGroupsOrder},
		{"ListGroupsByMember", testListGroupsByMember},
		{"AppendMember bumps version", testAppendMember},
		{"AppendMember stale version", testAppendMemberConflict},
		{"AppendMember unknown group", testAppendMemberNotFound},
		{"AppendMember concurrent writers", testAppendMemberConcurrent},
		{"AppendMember concurrent groups", testAppendMemberDistinctGroups},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			t.Cleanup(func() { store.Close() })
			tt.fn(t, store)
		})
	}
}

func newUser(t *testing.T, store storage.Store, name string, offset time.Duration) *models.User {
	t.Helper()
	user := &models.User{
		Name:        name,
		Phone:       "+15550000000",
		Email:       name + "@example.com",
		ArrivalTime: arrival.Add(offset),
		Location:    "AIRPORT_A",
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func newGroup(t *testing.T, store storage.Store, founder *models.User) *models.Group {
	t.Helper()
	group := &models.Group{
		Members:     []string{founder.ID},
		ArrivalTime: founder.ArrivalTime,
		Location:    founder.Location,
	}
	require.NoError(t, store.CreateGroup(context.Background(), group))
	return group
}

func testCreateUser(t *testing.T, store storage.Store) {
	ctx := context.Background()
	user := newUser(t, store, "alice", 0)

	assert.NotEmpty(t, user.ID, "User ID should be set after creation")
	assert.NotZero(t, user.CreatedAt, "CreatedAt should be set")

	users, err := store.GetUsers(ctx, []string{user.ID})
	require.NoError(t, err)
	require.Len(t, users, 1)

	got := users[0]
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, "+15550000000", got.Phone)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "AIRPORT_A", got.Location)
	assert.True(t, got.ArrivalTime.Equal(user.ArrivalTime), "arrival time %v != %v", got.ArrivalTime, user.ArrivalTime)
}

func testGetUsers(t *testing.T, store storage.Store) {
	ctx := context.Background()
	a := newUser(t, store, "alice", 0)
	b := newUser(t, store, "bob", time.Minute)
	c := newUser(t, store, "carol", 2*time.Minute)

	users, err := store.GetUsers(ctx, []string{c.ID, "missing-id", a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, ids(users))

	users, err = store.GetUsers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func testCreateGroup(t *testing.T, store storage.Store) {
	ctx := context.Background()
	founder := newUser(t, store, "alice", 0)
	group := newGroup(t, store, founder)

	assert.NotEmpty(t, group.ID)
	assert.Equal(t, int64(1), group.Version)
	assert.NotZero(t, group.CreatedAt)

	got, err := store.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{founder.ID}, got.Members)
	assert.Equal(t, "AIRPORT_A", got.Location)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.ArrivalTime.Equal(founder.ArrivalTime))
}

func testGetGroupNotFound(t *testing.T, store storage.Store) {
	_, err := store.GetGroup(context.Background(), "nonexistent-id")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testListGroupsOrder(t *testing.T, store storage.Store) {
	ctx := context.Background()

	groups, err := store.ListGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)

	var want []string
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		want = append(want, newGroup(t, store, newUser(t, store, name, 0)).ID)
	}

	for i := 0; i < 3; i++ {
		groups, err = store.ListGroups(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, groupIDs(groups), "listing must be stable across calls")
	}
}

func testListGroupsByMember(t *testing.T, store storage.Store) {
	ctx := context.Background()
	alice := newUser(t, store, "alice", 0)
	bob := newUser(t, store, "bob", 5*time.Minute)
	carol := newUser(t, store, "carol", 0)

	group := newGroup(t, store, alice)
	_, err := store.AppendMember(ctx, group.ID, group.Version, bob.ID)
	require.NoError(t, err)
	newGroup(t, store, carol)

	groups, err := store.ListGroupsByMember(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, group.ID, groups[0].ID)
	assert.Equal(t, []string{alice.ID, bob.ID}, groups[0].Members)

	groups, err = store.ListGroupsByMember(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func testAppendMember(t *testing.T, store storage.Store) {
	ctx := context.Background()
	alice := newUser(t, store, "alice", 0)
	bob := newUser(t, store, "bob", 10*time.Minute)
	carol := newUser(t, store, "carol", 20*time.Minute)
	group := newGroup(t, store, alice)

	updated, err := store.AppendMember(ctx, group.ID, 1, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, []string{alice.ID, bob.ID}, updated.Members)

	updated, err = store.AppendMember(ctx, group.ID, 2, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.Version)
	assert.Equal(t, []string{alice.ID, bob.ID, carol.ID}, updated.Members)

	got, err := store.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Members, got.Members)
	assert.Equal(t, int64(3), got.Version)
}

func testAppendMemberConflict(t *testing.T, store storage.Store) {
	ctx := context.Background()
	alice := newUser(t, store, "alice", 0)
	bob := newUser(t, store, "bob", 0)
	carol := newUser(t, store, "carol", 0)
	group := newGroup(t, store, alice)

	_, err := store.AppendMember(ctx, group.ID, group.Version, bob.ID)
	require.NoError(t, err)

	_, err = store.AppendMember(ctx, group.ID, group.Version, carol.ID)
	assert.ErrorIs(t, err, storage.ErrVersionConflict)

	got, err := store.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID, bob.ID}, got.Members, "a rejected append must not change the group")
}

func testAppendMemberNotFound(t *testing.T, store storage.Store) {
	user := newUser(t, store, "alice", 0)
	_, err := store.AppendMember(context.Background(), "nonexistent-id", 1, user.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testAppendMemberConcurrent(t *testing.T, store storage.Store) {
	ctx := context.Background()
	group := newGroup(t, store, newUser(t, store, "founder", 0))

	const writers = 8
	candidates := make([]*models.User, writers)
	for i := range candidates {
		candidates[i] = newUser(t, store, "writer", time.Duration(i)*time.Minute)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for _, candidate := range candidates {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := store.AppendMember(ctx, group.ID, group.Version, userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, storage.ErrVersionConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(candidate.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded, "exactly one writer may win the same version")
	assert.Equal(t, writers-1, conflicts)

	got, err := store.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 2)
	assert.Equal(t, int64(2), got.Version)
}

func testAppendMemberDistinctGroups(t *testing.T, store storage.Store) {
	ctx := context.Background()

	const n = 8
	groups := make([]*models.Group, n)
	joiners := make([]*models.User, n)
	for i := range groups {
		groups[i] = newGroup(t, store, newUser(t, store, "founder", time.Duration(i)*time.Minute))
		joiners[i] = newUser(t, store, "joiner", time.Duration(i)*time.Minute)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range groups {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.AppendMember(ctx, groups[i].ID, groups[i].Version, joiners[i].ID)
		}(i)
	}
	wg.Wait()

	for i, group := range groups {
		assert.NoError(t, errs[i], "appends to different groups must not conflict")

		got, err := store.GetGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{group.Members[0], joiners[i].ID}, got.Members)
		assert.Equal(t, int64(2), got.Version)
	}
}

func testPing(t *testing.T, store storage.Store) {
	assert.NoError(t, store.Ping(context.Background()))
}

func ids(users []*models.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func groupIDs(groups []*models.Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.ID
	}
	return out
}

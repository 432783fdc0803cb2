// Package matcher places each new traveler into the first compatible group,
// or into a new group of their own.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmynk/travelmatch/internal/compatibility"
	"github.com/mmynk/travelmatch/internal/metrics"
	"github.com/mmynk/travelmatch/internal/models"
	"github.com/mmynk/travelmatch/internal/storage"
)

// DefaultMaxCommitAttempts bounds how often a submission rescans after
// losing an append race.
const DefaultMaxCommitAttempts = 5

const tracerName = "github.com/mmynk/travelmatch/internal/matcher"

// Notifier receives the full member list of a group that just gained a member.
type Notifier interface {
	Notify(ctx context.Context, members []*models.User)
}

// Error is returned when a repository operation fails during matching.
type Error struct {
	// Op names the step that failed (e.g., "create user").
	Op  string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("matcher: failed to %s: %v", e.Op, e.Err)
}

// Unwrap returns the repository error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Options configures a Matcher. Every field is optional.
type Options struct {
	Evaluator         compatibility.Evaluator
	Notifier          Notifier
	Metrics           *metrics.Metrics
	Logger            *slog.Logger
	MaxCommitAttempts int
}

// Matcher runs the submission flow against a store.
// It's safe to use it concurrently from multiple goroutines.
type Matcher struct {
	store       storage.Store
	evaluator   compatibility.Evaluator
	notifier    Notifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
	maxAttempts int
	tracer      trace.Tracer
}

// New creates a Matcher over store.
func New(store storage.Store, opts Options) *Matcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxCommitAttempts <= 0 {
		opts.MaxCommitAttempts = DefaultMaxCommitAttempts
	}
	return &Matcher{
		store:       store,
		evaluator:   opts.Evaluator,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		maxAttempts: opts.MaxCommitAttempts,
		tracer:      otel.Tracer(tracerName),
	}
}

// Submit stores the traveler and groups them.
//
// The first group in creation order whose members are all compatible with
// the traveler is joined, and every member of the resulting group is
// notified. Without such a group a new single-member group is created and
// nobody is notified. Submitting the same details twice creates two users.
func (m *Matcher) Submit(ctx context.Context, sub models.Submission) (result *models.MatchResult, err error) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "matcher.Submit",
		trace.WithAttributes(attribute.String("travel.location", sub.Location)))
	defer func() {
		outcome := metrics.OutcomeFailed
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result.Joined:
			outcome = metrics.OutcomeJoined
		default:
			outcome = metrics.OutcomeCreated
		}
		m.metrics.ObserveSubmission(outcome, time.Since(start))
		span.End()
	}()

	user := sub.NewUser()
	if err := m.store.CreateUser(ctx, user); err != nil {
		return nil, &Error{Op: "create user", Err: err}
	}
	span.SetAttributes(attribute.String("travel.user_id", user.ID))

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		group, err := m.findGroup(ctx, user)
		if err != nil {
			return nil, err
		}
		if group == nil {
			return m.createGroup(ctx, user)
		}

		updated, err := m.store.AppendMember(ctx, group.ID, group.Version, user.ID)
		if errors.Is(err, storage.ErrVersionConflict) {
			m.metrics.CommitConflict()
			m.logger.Debug("Group changed before join, rescanning",
				"user_id", user.ID,
				"group_id", group.ID,
				"attempt", attempt,
			)
			continue
		}
		if err != nil {
			return nil, &Error{Op: "append member", Err: err}
		}

		members, err := m.store.GetUsers(ctx, updated.Members)
		if err != nil {
			return nil, &Error{Op: "resolve members", Err: err}
		}

		span.SetAttributes(
			attribute.String("travel.group_id", updated.ID),
			attribute.Int("travel.group_size", len(updated.Members)),
			attribute.Int("travel.commit_attempts", attempt),
		)
		m.logger.Info("User joined group",
			"user_id", user.ID,
			"group_id", updated.ID,
			"members", len(updated.Members),
		)

		if m.notifier != nil {
			m.notifier.Notify(ctx, members)
		}
		return &models.MatchResult{User: user, Group: updated, Members: members, Joined: true}, nil
	}

	// Contention never fails a submission; fall back to a group of one.
	m.logger.Warn("Giving up on joining after repeated conflicts",
		"user_id", user.ID,
		"attempts", m.maxAttempts,
	)
	return m.createGroup(ctx, user)
}

// findGroup returns the first group user can join, or nil.
func (m *Matcher) findGroup(ctx context.Context, user *models.User) (*models.Group, error) {
	groups, err := m.store.ListGroups(ctx)
	if err != nil {
		return nil, &Error{Op: "list groups", Err: err}
	}

	for _, group := range groups {
		if !m.evaluator.Admits(user, group) {
			continue
		}

		members, err := m.store.GetUsers(ctx, group.Members)
		if err != nil {
			return nil, &Error{Op: "resolve members", Err: err}
		}
		if len(members) != len(group.Members) {
			m.metrics.UnresolvedGroup()
			m.logger.Warn("Skipping group with unresolved members",
				"group_id", group.ID,
				"members", len(group.Members),
				"resolved", len(members),
			)
			continue
		}

		if m.evaluator.Compatible(user, members) {
			return group, nil
		}
	}
	return nil, nil
}

func (m *Matcher) createGroup(ctx context.Context, user *models.User) (*models.MatchResult, error) {
	group := &models.Group{
		Members:     []string{user.ID},
		ArrivalTime: user.ArrivalTime,
		Location:    user.Location,
	}
	if err := m.store.CreateGroup(ctx, group); err != nil {
		return nil, &Error{Op: "create group", Err: err}
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("travel.group_id", group.ID))
	m.logger.Info("Created new group", "user_id", user.ID, "group_id", group.ID)

	return &models.MatchResult{
		User:    user,
		Group:   group,
		Members: []*models.User{user},
		Joined:  false,
	}, nil
}

// GroupsForUser returns every group containing userID with members resolved.
// Members that no longer resolve are left out.
func (m *Matcher) GroupsForUser(ctx context.Context, userID string) ([]*models.GroupWithMembers, error) {
	ctx, span := m.tracer.Start(ctx, "matcher.GroupsForUser",
		trace.WithAttributes(attribute.String("travel.user_id", userID)))
	defer span.End()

	groups, err := m.store.ListGroupsByMember(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, &Error{Op: "list groups", Err: err}
	}

	result := make([]*models.GroupWithMembers, 0, len(groups))
	for _, group := range groups {
		members, err := m.store.GetUsers(ctx, group.Members)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, &Error{Op: "resolve members", Err: err}
		}
		result = append(result, &models.GroupWithMembers{Group: group, Members: members})
	}
	return result, nil
}

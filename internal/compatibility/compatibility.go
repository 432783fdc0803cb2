// Package compatibility decides whether a traveler can join a group.
package compatibility

import (
	"time"

	"github.com/mmynk/travelmatch/internal/models"
)

// DefaultThreshold is the maximum arrival gap between two compatible travelers.
const DefaultThreshold = 30 * time.Minute

// Evaluator checks arrival time proximity and location equality.
// The zero value uses DefaultThreshold.
type Evaluator struct {
	Threshold time.Duration
}

// New returns an Evaluator with the given threshold.
// A non-positive threshold falls back to DefaultThreshold.
func New(threshold time.Duration) Evaluator {
	return Evaluator{Threshold: threshold}
}

func (e Evaluator) threshold() time.Duration {
	if e.Threshold <= 0 {
		return DefaultThreshold
	}
	return e.Threshold
}

// Compatible reports whether candidate is compatible with every member.
// Based on: |candidate.arrival - member.arrival| <= threshold AND candidate.location == member.location
// for all members. Missing data on either side never matches.
func (e Evaluator) Compatible(candidate *models.User, members []*models.User) bool {
	if !complete(candidate) {
		return false
	}
	for _, member := range members {
		if !e.Pair(candidate, member) {
			return false
		}
	}
	return true
}

// Pair is the symmetric pairwise predicate behind Compatible.
func (e Evaluator) Pair(a, b *models.User) bool {
	if !complete(a) || !complete(b) {
		return false
	}
	if a.Location != b.Location {
		return false
	}
	return WithinThreshold(a.ArrivalTime, b.ArrivalTime, e.threshold())
}

// Admits reports whether candidate passes against the group's representative
// arrival time and location. It is necessary for Compatible with the group's
// members, not sufficient.
func (e Evaluator) Admits(candidate *models.User, group *models.Group) bool {
	if group == nil {
		return false
	}
	return e.Pair(candidate, &models.User{ArrivalTime: group.ArrivalTime, Location: group.Location})
}

// WithinThreshold reports whether t1 and t2 are at most d apart, in either direction.
func WithinThreshold(t1, t2 time.Time, d time.Duration) bool {
	diff := t1.Sub(t2)
	if diff < 0 {
		diff = -diff
	}
	return diff <= d
}

func complete(u *models.User) bool {
	return u != nil && !u.ArrivalTime.IsZero() && u.Location != ""
}

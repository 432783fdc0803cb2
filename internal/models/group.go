package models

import "time"

// Group represents travelers matched together by arrival time and location.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Members is the list of member user IDs, in join order.
	Members []string

	// ArrivalTime is the founding member's arrival time.
	ArrivalTime time.Time

	// Location is the founding member's location. Every member shares it.
	Location string

	// Version starts at 1 and increases by one on every appended member.
	// Stores reject an append whose expected version is stale.
	Version int64

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// HasMember reports whether userID is one of the group's members.
func (g *Group) HasMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// GroupWithMembers is a group whose member IDs have been resolved to users.
type GroupWithMembers struct {
	Group   *Group
	Members []*User
}

// MatchResult is the outcome of matching one submission.
type MatchResult struct {
	// User is the newly stored traveler.
	User *User

	// Group is the group the user ended up in, as committed.
	Group *Group

	// Members are the resolved members of Group, including User.
	Members []*User

	// Joined is true when the user was attached to an existing group and
	// false when a new single-member group was created.
	Joined bool
}

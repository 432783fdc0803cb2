package models

import "time"

// User represents a traveler who submitted their arrival details.
// Users are created once per submission and never updated afterwards.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Name is the display name used in match notifications.
	Name string

	// Phone is the SMS destination for match notifications.
	Phone string

	// Email is the email destination for match notifications.
	Email string

	// ArrivalTime is when the traveler arrives. The zone offset is kept
	// where the storage backend can represent it.
	ArrivalTime time.Time

	// Location is an opaque key (e.g., "AIRPORT_A") compared by exact equality.
	Location string

	// CreatedAt is the Unix timestamp when the user was stored.
	CreatedAt int64
}

// Submission is the validated input of a single submit call.
type Submission struct {
	Name        string
	Phone       string
	Email       string
	ArrivalTime time.Time
	Location    string
}

// NewUser builds an unsaved User from a submission.
func (s Submission) NewUser() *User {
	return &User{
		Name:        s.Name,
		Phone:       s.Phone,
		Email:       s.Email,
		ArrivalTime: s.ArrivalTime,
		Location:    s.Location,
	}
}

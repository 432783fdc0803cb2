package service

import (
	"time"

	"github.com/mmynk/travelmatch/internal/middleware"
	"github.com/mmynk/travelmatch/internal/models"
)

var (
	_ middleware.Outcome = (*SubmitResponse)(nil)
	_ middleware.Outcome = (*GetUserGroupsResponse)(nil)
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SubmitRequest carries one traveler's details.
type SubmitRequest struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	ArrivalTime string `json:"arrival_time"`
	Location    string `json:"location"`
}

// Member is a group member as returned to clients.
type Member struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	ArrivalTime string `json:"arrival_time"`
	Location    string `json:"location"`
}

// SubmitResponse reports where the traveler ended up.
type SubmitResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	UserID  string   `json:"user_id"`
	GroupID string   `json:"group_id"`
	Matched bool     `json:"matched"`
	Members []Member `json:"members"`
}

// LogAttrs implements middleware.Outcome.
func (r *SubmitResponse) LogAttrs() []any {
	return []any{"user_id", r.UserID, "group_id", r.GroupID, "matched", r.Matched, "members", len(r.Members)}
}

// GetUserGroupsRequest selects the traveler whose groups are listed.
type GetUserGroupsRequest struct {
	UserID string `json:"user_id"`
}

// Group is a group with its members expanded.
type Group struct {
	ID          string   `json:"id"`
	ArrivalTime string   `json:"arrival_time"`
	Location    string   `json:"location"`
	Members     []Member `json:"members"`
}

// GetUserGroupsResponse lists the traveler's groups.
type GetUserGroupsResponse struct {
	Status string  `json:"status"`
	Groups []Group `json:"groups"`
}

// LogAttrs implements middleware.Outcome.
func (r *GetUserGroupsResponse) LogAttrs() []any {
	return []any{"groups", len(r.Groups)}
}

// ErrorResponse is the REST body of a failed request.
type ErrorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func toMembers(users []*models.User) []Member {
	members := make([]Member, 0, len(users))
	for _, u := range users {
		members = append(members, Member{
			ID:          u.ID,
			Name:        u.Name,
			Phone:       u.Phone,
			Email:       u.Email,
			ArrivalTime: u.ArrivalTime.Format(time.RFC3339),
			Location:    u.Location,
		})
	}
	return members
}

func toSubmitResponse(result *models.MatchResult) *SubmitResponse {
	message := "Submitted; no match yet, a new group was created"
	if result.Joined {
		message = "Submitted and matched with an existing group"
	}
	return &SubmitResponse{
		Status:  StatusSuccess,
		Message: message,
		UserID:  result.User.ID,
		GroupID: result.Group.ID,
		Matched: result.Joined,
		Members: toMembers(result.Members),
	}
}

func toGroupsResponse(groups []*models.GroupWithMembers) *GetUserGroupsResponse {
	resp := &GetUserGroupsResponse{
		Status: StatusSuccess,
		Groups: make([]Group, 0, len(groups)),
	}
	for _, g := range groups {
		resp.Groups = append(resp.Groups, Group{
			ID:          g.Group.ID,
			ArrivalTime: g.Group.ArrivalTime.Format(time.RFC3339),
			Location:    g.Group.Location,
			Members:     toMembers(g.Members),
		})
	}
	return resp
}

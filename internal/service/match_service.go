// Package service exposes the matcher over Connect RPC and plain REST.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/travelmatch/internal/models"
)

const (
	// MatchServiceName is the fully-qualified name of the MatchService.
	MatchServiceName = "travelmatch.v1.MatchService"

	// SubmitProcedure is the full path of MatchService.Submit.
	SubmitProcedure = "/travelmatch.v1.MatchService/Submit"

	// GetUserGroupsProcedure is the full path of MatchService.GetUserGroups.
	GetUserGroupsProcedure = "/travelmatch.v1.MatchService/GetUserGroups"
)

// errInternal hides storage details from callers; the cause is logged.
var errInternal = errors.New("failed to process request, please try again")

// Matcher is the core the service delegates to.
type Matcher interface {
	Submit(ctx context.Context, sub models.Submission) (*models.MatchResult, error)
	GroupsForUser(ctx context.Context, userID string) ([]*models.GroupWithMembers, error)
}

// MatchService implements the Connect MatchService.
type MatchService struct {
	matcher  Matcher
	location *time.Location
	logger   *slog.Logger
}

// NewMatchService creates a MatchService. Arrival times without an offset
// are read in loc (UTC when nil).
func NewMatchService(matcher Matcher, loc *time.Location, logger *slog.Logger) *MatchService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchService{matcher: matcher, location: loc, logger: logger}
}

// Submit stores a traveler and matches them into a group.
func (s *MatchService) Submit(ctx context.Context, req *connect.Request[SubmitRequest]) (*connect.Response[SubmitResponse], error) {
	resp, err := s.submit(ctx, req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(resp), nil
}

// GetUserGroups lists the groups a traveler belongs to.
func (s *MatchService) GetUserGroups(ctx context.Context, req *connect.Request[GetUserGroupsRequest]) (*connect.Response[GetUserGroupsResponse], error) {
	resp, err := s.userGroups(ctx, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(resp), nil
}

func (s *MatchService) submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	s.logger.Info("Submit request received", "location", req.Location)

	sub, err := req.toSubmission(s.location)
	if err != nil {
		s.logger.Warn("Submit rejected", "error", err)
		return nil, err
	}

	result, err := s.matcher.Submit(ctx, sub)
	if err != nil {
		s.logger.Error("Submit failed", "error", err)
		return nil, errInternal
	}

	s.logger.Info("Submit successful",
		"user_id", result.User.ID,
		"group_id", result.Group.ID,
		"matched", result.Joined,
	)
	return toSubmitResponse(result), nil
}

func (s *MatchService) userGroups(ctx context.Context, userID string) (*GetUserGroupsResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &ValidationError{FieldErrors: map[string]string{"user_id": "user id is required"}}
	}

	groups, err := s.matcher.GroupsForUser(ctx, userID)
	if err != nil {
		s.logger.Error("GetUserGroups failed", "user_id", userID, "error", err)
		return nil, errInternal
	}

	s.logger.Info("GetUserGroups successful", "user_id", userID, "count", len(groups))
	return toGroupsResponse(groups), nil
}

func toConnectError(err error) error {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return connect.NewError(connect.CodeInvalidArgument, vErr)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// NewMatchServiceHandler builds an HTTP handler for the service's procedures
// and returns the path to mount it on.
func NewMatchServiceHandler(svc *MatchService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	submit := connect.NewUnaryHandler(SubmitProcedure, svc.Submit, opts...)
	getUserGroups := connect.NewUnaryHandler(GetUserGroupsProcedure, svc.GetUserGroups, opts...)

	return "/" + MatchServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SubmitProcedure:
			submit.ServeHTTP(w, r)
		case GetUserGroupsProcedure:
			getUserGroups.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// MatchServiceClient calls a remote MatchService.
type MatchServiceClient struct {
	submit        *connect.Client[SubmitRequest, SubmitResponse]
	getUserGroups *connect.Client[GetUserGroupsRequest, GetUserGroupsResponse]
}

// NewMatchServiceClient creates a client for the service at baseURL.
func NewMatchServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *MatchServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &MatchServiceClient{
		submit:        connect.NewClient[SubmitRequest, SubmitResponse](httpClient, baseURL+SubmitProcedure, opts...),
		getUserGroups: connect.NewClient[GetUserGroupsRequest, GetUserGroupsResponse](httpClient, baseURL+GetUserGroupsProcedure, opts...),
	}
}

// Submit calls MatchService.Submit.
func (c *MatchServiceClient) Submit(ctx context.Context, req *connect.Request[SubmitRequest]) (*connect.Response[SubmitResponse], error) {
	return c.submit.CallUnary(ctx, req)
}

// GetUserGroups calls MatchService.GetUserGroups.
func (c *MatchServiceClient) GetUserGroups(ctx context.Context, req *connect.Request[GetUserGroupsRequest]) (*connect.Response[GetUserGroupsResponse], error) {
	return c.getUserGroups.CallUnary(ctx, req)
}

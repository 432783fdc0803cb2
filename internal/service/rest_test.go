package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestRESTSubmitAndGroups(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/submit",
		`{"name":"Alice","phone":"+15550000001","email":"alice@example.com","arrival_time":"2026-10-17T10:00","location":"JFK"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	alice := decode[SubmitResponse](t, resp)

	// The legacy alias behaves the same.
	resp = postJSON(t, server.URL+"/api/submit-details",
		`{"name":"Bob","email":"bob@example.com","arrival_time":"2026-10-17T10:15:00Z","location":"JFK"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	bob := decode[SubmitResponse](t, resp)
	if !bob.Matched || bob.GroupID != alice.GroupID {
		t.Errorf("Bob should join Alice's group: %+v", bob)
	}

	for _, path := range []string{"/groups/", "/api/groups/"} {
		resp, err := http.Get(server.URL + path + alice.UserID)
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		groups := decode[GetUserGroupsResponse](t, resp)
		resp.Body.Close()

		if groups.Status != StatusSuccess || len(groups.Groups) != 1 {
			t.Fatalf("%s: response = %+v", path, groups)
		}
		if len(groups.Groups[0].Members) != 2 {
			t.Errorf("%s: members = %d, want 2", path, len(groups.Groups[0].Members))
		}
	}
}

func TestRESTSubmitValidation(t *testing.T) {
	server, _ := setupTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{
			name:       "malformed JSON",
			body:       `{"name":`,
			wantFields: []string{"body"},
		},
		{
			name:       "empty object",
			body:       `{}`,
			wantFields: []string{"name", "location", "contact", "arrival_time"},
		},
		{
			name:       "unparseable arrival",
			body:       `{"name":"Alice","phone":"+1","arrival_time":"next tuesday","location":"JFK"}`,
			wantFields: []string{"arrival_time"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, server.URL+"/submit", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			body := decode[ErrorResponse](t, resp)
			if body.Status != StatusError {
				t.Errorf("status = %q, want error", body.Status)
			}
			for _, field := range tt.wantFields {
				if _, ok := body.Errors[field]; !ok {
					t.Errorf("missing error for %q: %v", field, body.Errors)
				}
			}
		})
	}
}

func TestRESTInternalError(t *testing.T) {
	server, _ := serve(t, NewMatchService(failingMatcher{}, nil, discardLogger()))

	resp := postJSON(t, server.URL+"/submit",
		`{"name":"Alice","phone":"+1","arrival_time":"2026-10-17T10:00:00Z","location":"JFK"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	body := decode[ErrorResponse](t, resp)
	if strings.Contains(body.Message, "locked") {
		t.Errorf("message leaks storage details: %q", body.Message)
	}
}

func TestRESTWrongMethod(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, err := http.Get(server.URL + "/submit")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

type pingerFunc func() error

func (f pingerFunc) Ping(_ context.Context) error { return f() }

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(pingerFunc(func() error { return nil })).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	HealthHandler(pingerFunc(func() error { return errors.New("down") })).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want 503", rec.Code)
	}
}

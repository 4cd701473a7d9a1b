package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"example.com/commsledger/internal/auth"
	"example.com/commsledger/internal/domain"
)

type mockRepo struct {
	activities []domain.Activity
	next       *domain.Cursor
	getResult  *domain.Activity
	getErr     error
}

func (m *mockRepo) FindByCallSID(context.Context, string, string) (*domain.Activity, error) {
	return nil, nil
}

func (m *mockRepo) Insert(context.Context, domain.Activity) error { return nil }

func (m *mockRepo) Update(context.Context, domain.ActivityUpdate) error { return nil }

func (m *mockRepo) Get(context.Context, string, string) (*domain.Activity, error) {
	return m.getResult, m.getErr
}

func (m *mockRepo) ListByOrganization(context.Context, string, *domain.Cursor, int) ([]domain.Activity, *domain.Cursor, error) {
	return m.activities, m.next, nil
}

func readerClaims() *auth.Claims {
	return &auth.Claims{
		Subject:        "tester",
		OrganizationID: "org-1",
		Scopes: map[string]struct{}{
			auth.ScopeActivitiesRead: {},
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestListActivitiesSuccess(t *testing.T) {
	now := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		activities: []domain.Activity{
			{
				ID:             "act-1",
				OrganizationID: "org-1",
				Type:           domain.ActivityTypeCall,
				Notes:          "Inbound call completed (00:42)",
				OccurredAt:     now,
				Metadata:       domain.CallMetadata{CallSID: "CA1", Status: "completed", Duration: 42},
			},
		},
		next: &domain.Cursor{OccurredAt: now, ID: "act-1"},
	}
	handler := NewHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/v1/activities?limit=10", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), readerClaims()))

	rr := httptest.NewRecorder()
	handler.listActivities(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ListActivitiesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 item got %d", len(resp.Items))
	}
	if resp.Items[0].ActivityType != "call" {
		t.Fatalf("unexpected activity type %q", resp.Items[0].ActivityType)
	}
	if resp.NextCursor == "" {
		t.Fatal("expected next cursor")
	}

	var metadata map[string]any
	if err := json.Unmarshal(resp.Items[0].Metadata, &metadata); err != nil {
		t.Fatalf("failed to decode metadata: %v", err)
	}
	if metadata["call_sid"] != "CA1" {
		t.Fatalf("unexpected metadata %v", metadata)
	}
}

func TestListActivitiesRequiresClaims(t *testing.T) {
	handler := NewHandler(&mockRepo{})

	req := httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
	rr := httptest.NewRecorder()
	handler.listActivities(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestListActivitiesRequiresScope(t *testing.T) {
	handler := NewHandler(&mockRepo{})

	claims := readerClaims()
	claims.Scopes = map[string]struct{}{}

	req := httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), claims))
	rr := httptest.NewRecorder()
	handler.listActivities(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestListActivitiesRejectsBadCursor(t *testing.T) {
	handler := NewHandler(&mockRepo{})

	req := httptest.NewRequest(http.MethodGet, "/v1/activities?cursor=%21%21not-base64", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), readerClaims()))
	rr := httptest.NewRecorder()
	handler.listActivities(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestGetActivityNotFound(t *testing.T) {
	handler := NewHandler(&mockRepo{getErr: domain.ErrActivityNotFound})

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/v1/activities/missing", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), readerClaims()))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGetActivitySuccess(t *testing.T) {
	now := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	handler := NewHandler(&mockRepo{
		getResult: &domain.Activity{
			ID:             "act-1",
			OrganizationID: "org-1",
			Type:           domain.ActivityTypeEmail,
			Notes:          "Email delivered: Your invoice",
			OccurredAt:     now,
			Metadata:       domain.EmailMetadata{MessageID: "m1", Subject: "Your invoice"},
		},
	})

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/v1/activities/act-1", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), readerClaims()))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var view ActivityView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if view.ActivityID != "act-1" || view.ActivityType != "email" {
		t.Fatalf("unexpected view %+v", view)
	}
}

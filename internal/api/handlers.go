// Package api exposes the read endpoints the UI uses to hydrate the ledger
// beyond the realtime feed.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"example.com/commsledger/internal/auth"
	"example.com/commsledger/internal/domain"
	"example.com/commsledger/internal/persistence"
)

// Handler coordinates HTTP requests with the repository.
type Handler struct {
	repo domain.ActivityRepository
}

// NewHandler builds a Handler.
func NewHandler(repo domain.ActivityRepository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes wires endpoints to the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/activities", h.listActivities)
	r.Get("/v1/activities/{activityID}", h.getActivity)
	r.Get("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivitiesRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activities:read required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.repo.ListByOrganization(r.Context(), claims.OrganizationID, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		view, err := toActivityView(activity)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		items = append(items, view)
	}

	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivitiesRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activities:read required")
		return
	}

	activityID := chi.URLParam(r, "activityID")
	if activityID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	activity, err := h.repo.Get(r.Context(), claims.OrganizationID, activityID)
	if err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "activity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if activity == nil {
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
		return
	}

	view, err := toActivityView(*activity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ActivityView exposes full details about a ledger record.
type ActivityView struct {
	ActivityID     string          `json:"activity_id"`
	OrganizationID string          `json:"organization_id"`
	ActivityType   string          `json:"activity_type"`
	UserID         string          `json:"user_id,omitempty"`
	Notes          string          `json:"notes"`
	RelatedType    string          `json:"related_type,omitempty"`
	RelatedID      string          `json:"related_id,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Metadata       json.RawMessage `json:"metadata"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func toActivityView(activity domain.Activity) (ActivityView, error) {
	metadata, err := domain.MarshalMetadata(activity.Metadata)
	if err != nil {
		return ActivityView{}, err
	}
	return ActivityView{
		ActivityID:     activity.ID,
		OrganizationID: activity.OrganizationID,
		ActivityType:   string(activity.Type),
		UserID:         activity.UserID,
		Notes:          activity.Notes,
		RelatedType:    string(activity.Related.Kind),
		RelatedID:      activity.Related.ID,
		OccurredAt:     activity.OccurredAt,
		CreatedAt:      activity.CreatedAt,
		UpdatedAt:      activity.UpdatedAt,
		Metadata:       metadata,
	}, nil
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

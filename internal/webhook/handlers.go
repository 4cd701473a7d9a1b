// Package webhook exposes the provider callback endpoints and applies the
// ingestion error policy: malformed payloads are acknowledged so providers
// stop retrying them; persistence failures return 5xx so providers retry.
package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"example.com/commsledger/internal/ingest"
	"example.com/commsledger/internal/translator"
)

// Handler routes provider callbacks into the ingestion pipeline.
type Handler struct {
	service *ingest.Service
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(service *ingest.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes wires the callback endpoints onto the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/voice", h.voice)
	r.Post("/webhooks/sms", h.sms)
	r.Post("/webhooks/email", h.email)
}

func (h *Handler) voice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.acknowledgeMalformed(w, "voice", err)
		return
	}

	event, err := translator.Voice(r.PostForm, h.now())
	if err != nil {
		h.acknowledgeMalformed(w, "voice", err)
		return
	}

	h.ingest(w, r, event)
}

func (h *Handler) sms(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.acknowledgeMalformed(w, "sms", err)
		return
	}

	event, err := translator.SMS(r.PostForm, h.now())
	if err != nil {
		h.acknowledgeMalformed(w, "sms", err)
		return
	}

	h.ingest(w, r, event)
}

// email accepts both a single event object and the batched array form the
// provider posts. One persistence failure fails the whole batch so the
// provider redelivers it; malformed entries are skipped with a warning.
func (h *Handler) email(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.acknowledgeMalformed(w, "email", err)
		return
	}

	var batch []map[string]any
	if err := json.Unmarshal(raw, &batch); err != nil {
		var single map[string]any
		if err := json.Unmarshal(raw, &single); err != nil {
			h.acknowledgeMalformed(w, "email", err)
			return
		}
		batch = []map[string]any{single}
	}

	for _, payload := range batch {
		event, err := translator.Email(payload, h.now())
		if err != nil {
			h.logger.Warn("dropping malformed email event", zap.Error(err))
			continue
		}
		if _, _, err := h.service.Ingest(r.Context(), event); err != nil {
			h.serverError(w, "email", err)
			return
		}
	}
	writeOK(w)
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, event translator.Event) {
	_, outcome, err := h.service.Ingest(r.Context(), event)
	if err != nil {
		h.serverError(w, string(event.Channel), err)
		return
	}
	h.logger.Debug("webhook processed",
		zap.String("channel", string(event.Channel)),
		zap.String("outcome", string(outcome)))
	writeOK(w)
}

// acknowledgeMalformed logs and returns a non-retry success. Surfacing an
// error here would make the provider redeliver permanently broken payloads
// forever.
func (h *Handler) acknowledgeMalformed(w http.ResponseWriter, channel string, err error) {
	if errors.Is(err, translator.ErrMissingIdentifier) {
		h.logger.Warn("dropping webhook without provider identifier", zap.String("channel", channel))
	} else {
		h.logger.Warn("dropping malformed webhook", zap.String("channel", channel), zap.Error(err))
	}
	writeOK(w)
}

func (h *Handler) serverError(w http.ResponseWriter, channel string, err error) {
	h.logger.Error("webhook ingestion failed", zap.String("channel", channel), zap.Error(err))
	http.Error(w, "ingestion failed", http.StatusInternalServerError)
}

func writeOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

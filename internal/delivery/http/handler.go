package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vogiaan1904/vcping/internal/dispatch"
	"github.com/vogiaan1904/vcping/internal/domain"
	appErrors "github.com/vogiaan1904/vcping/internal/errors"
	"github.com/vogiaan1904/vcping/internal/subscription"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

type StatusSource interface {
	GetStatus() dispatch.Status
}

type ChannelLister interface {
	Channels(communityID string) []domain.ChannelState
}

type UpsertSubscriptionRequest struct {
	NotifyOnLeave *bool `json:"notify_on_leave" validate:"required"`
}

type HTTPHandler struct {
	status    StatusSource
	channels  ChannelLister
	subs      subscription.Service
	logger    logger.Logger
	validator *validator.Validate
}

func NewHTTPHandler(status StatusSource, channels ChannelLister, subs subscription.Service, logger logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		status:    status,
		channels:  channels,
		subs:      subs,
		logger:    logger,
		validator: validator.New(),
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.HealthCheck)
	r.Get("/status", h.GetStatus)
	r.Route("/communities/{communityId}", func(r chi.Router) {
		r.Get("/channels", h.ListChannels)
		r.Get("/subscriptions", h.ListSubscriptions)
		r.Put("/subscriptions/{userId}", h.UpsertSubscription)
		r.Delete("/subscriptions/{userId}", h.DeleteSubscription)
	})

	return r
}

// HealthCheck handles health check requests
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	st := h.status.GetStatus()

	code := http.StatusOK
	state := "healthy"
	if !st.IsRunning {
		code = http.StatusServiceUnavailable
		state = "stopped"
	}

	h.respondJSON(r.Context(), w, code, map[string]any{
		"status":  state,
		"service": "vcping",
	})
}

func (h *HTTPHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(r.Context(), w, http.StatusOK, h.status.GetStatus())
}

// ListChannels reports the tracked voice channels of one community.
func (h *HTTPHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	cID := chi.URLParam(r, "communityId")

	channels := h.channels.Channels(cID)
	if channels == nil {
		channels = []domain.ChannelState{}
	}
	h.respondJSON(r.Context(), w, http.StatusOK, channels)
}

func (h *HTTPHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	cID := chi.URLParam(r, "communityId")

	subs, err := h.subs.ListSubscribers(r.Context(), cID)
	if err != nil {
		h.respondError(r.Context(), w, http.StatusInternalServerError, "Failed to list subscriptions", err)
		return
	}
	if subs == nil {
		subs = []domain.Subscription{}
	}
	h.respondJSON(r.Context(), w, http.StatusOK, subs)
}

func (h *HTTPHandler) UpsertSubscription(w http.ResponseWriter, r *http.Request) {
	cID := chi.URLParam(r, "communityId")
	uID := chi.URLParam(r, "userId")

	var req UpsertSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(r.Context(), w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.respondError(r.Context(), w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	sub, err := h.subs.Upsert(r.Context(), cID, uID, *req.NotifyOnLeave)
	if err != nil {
		switch {
		case errors.Is(err, appErrors.ErrInvalidSubscription):
			h.respondError(r.Context(), w, http.StatusBadRequest, "Community and user are required", err)
		default:
			h.respondError(r.Context(), w, http.StatusInternalServerError, "Failed to save subscription", err)
		}
		return
	}

	h.respondJSON(r.Context(), w, http.StatusOK, sub)
}

func (h *HTTPHandler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	cID := chi.URLParam(r, "communityId")
	uID := chi.URLParam(r, "userId")

	if err := h.subs.Delete(r.Context(), cID, uID); err != nil {
		switch {
		case errors.Is(err, appErrors.ErrSubscriptionNotFound):
			h.respondError(r.Context(), w, http.StatusNotFound, "Subscription not found", err)
		default:
			h.respondError(r.Context(), w, http.StatusInternalServerError, "Failed to delete subscription", err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Helper functions

func (h *HTTPHandler) respondJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Errorf(ctx, "delivery.http.HTTPHandler.respondJSON: %v", err)
	}
}

func (h *HTTPHandler) respondError(ctx context.Context, w http.ResponseWriter, statusCode int, message string, err error) {
	response := map[string]any{
		"error": message,
		"code":  statusCode,
	}

	if err != nil {
		if statusCode >= http.StatusInternalServerError {
			h.logger.Errorf(ctx, "delivery.http.HTTPHandler: %s: %v", message, err)
		} else {
			h.logger.Debugf(ctx, "Error response %d %s: %v", statusCode, message, err)
		}
	}

	h.respondJSON(ctx, w, statusCode, response)
}

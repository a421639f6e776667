package handler

import (
	"encoding/json"
	"net/http"

	"mentorly/internal/reservations/service"
	"mentorly/pkg/config"
	apperrors "mentorly/pkg/errors"
	httputil "mentorly/pkg/http"
	"mentorly/pkg/logger"
	"mentorly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service service.ReservationService
	cfg     *config.Config
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, cfg *config.Config, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		cfg:     cfg,
		log:     log,
	}
}

// Create books a new reservation. A body carrying previous_reserve is a
// rebooking and supersedes the referenced pair.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var reservation model.Reservation
	if err := json.NewDecoder(r.Body).Decode(&reservation); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	var (
		created *model.Reservation
		err     error
	)
	if reservation.PreviousReserve != nil {
		created, err = h.service.CreateAndSupersede(r.Context(), &reservation)
	} else {
		created, err = h.service.Create(r.Context(), &reservation)
	}
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, created); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

type updateStatusRequest struct {
	UserID  string              `json:"user_id"`
	Status  model.BookingStatus `json:"status"`
	Message *model.Message      `json:"message,omitempty"`
}

func (h *ReservationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "UpdateStatus", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), id, req.UserID, req.Status, req.Message)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "UpdateStatus", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, updated); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	userID := query.Get("user_id")
	state := query.Get("state")
	role := query.Get("role")

	if userID == "" {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("'user_id' query parameter is required")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	batch, cursor, err := httputil.ExtractBatchCursor(r, h.cfg)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	list, err := h.service.List(r.Context(), userID, state, role, cursor, batch)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, list); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations", h.List)
	router.PATCH("/api/v1/reservations/id/:id/status", h.UpdateStatus)
}

package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"mentorly/internal/schedules/service"
	"mentorly/pkg/config"
	apperrors "mentorly/pkg/errors"
	httputil "mentorly/pkg/http"
	"mentorly/pkg/logger"
	"mentorly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ScheduleHandler struct {
	service service.ScheduleService
	cfg     *config.Config
	log     *logger.Logger
}

func NewScheduleHandler(service service.ScheduleService, cfg *config.Config, log *logger.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		service: service,
		cfg:     cfg,
		log:     log,
	}
}

type saveRequest struct {
	UserID    string            `json:"user_id"`
	Timeslots []*model.TimeSlot `json:"timeslots"`
	Until     int64             `json:"until,omitempty"`
}

func (h *ScheduleHandler) Save(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Save", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	persisted, err := h.service.Save(r.Context(), req.UserID, req.Timeslots, req.Until)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Save", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, persisted); err != nil {
		h.log.Error("failed to write created response", "handler", "Save", "operation", "WriteCreated", "error", err)
	}
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	userID := query.Get("user_id")

	if userID == "" {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("'user_id' query parameter is required")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	year, err := extractIntParam(query.Get("year"))
	if err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("invalid year parameter")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	month, err := extractIntParam(query.Get("month"))
	if err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("invalid month parameter")); writeErr != nil {
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

	list, err := h.service.List(r.Context(), userID, year, month, cursor, batch)
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

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	userID := r.URL.Query().Get("user_id")

	if err := h.service.DeleteSlot(r.Context(), userID, id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Delete", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func extractIntParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func (h *ScheduleHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/timeslots", h.Save)
	router.GET("/api/v1/timeslots", h.List)
	router.DELETE("/api/v1/timeslots/id/:id", h.Delete)
}

package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"turfbook/internal/bookings/service"
	"turfbook/pkg/config"
	apperrors "turfbook/pkg/errors"
	httputil "turfbook/pkg/http"
	"turfbook/pkg/logger"
	"turfbook/pkg/middleware"
	"turfbook/pkg/model"
)

type BookingHandler struct {
	service service.BookingService
	gate    *middleware.AccessGate
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, gate *middleware.AccessGate, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		gate:    gate,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeErr(w, "Create", apperrors.Unauthenticated("Missing or invalid authentication token"))
		return
	}

	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErr(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	booking, err := h.service.Create(r.Context(), identity.ActorID, &req)
	if err != nil {
		h.writeErr(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeErr(w, "Cancel", apperrors.Unauthenticated("Missing or invalid authentication token"))
		return
	}

	booking, err := h.service.Cancel(r.Context(), ps.ByName("id"), identity.ActorID)
	if err != nil {
		h.writeErr(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeErr(w, "ListMine", apperrors.Unauthenticated("Missing or invalid authentication token"))
		return
	}

	limit, offset, err := parsePagination(r.URL.Query())
	if err != nil {
		h.writeErr(w, "ListMine", err)
		return
	}

	bookings, total, err := h.service.ListForCustomer(r.Context(), identity.ActorID, limit, offset)
	if err != nil {
		h.writeErr(w, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) ListForTurf(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeErr(w, "ListForTurf", apperrors.Unauthenticated("Missing or invalid authentication token"))
		return
	}

	limit, offset, err := parsePagination(r.URL.Query())
	if err != nil {
		h.writeErr(w, "ListForTurf", err)
		return
	}

	bookings, total, err := h.service.ListForTurf(r.Context(), ps.ByName("id"), identity.ActorID, limit, offset)
	if err != nil {
		h.writeErr(w, "ListForTurf", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListForTurf", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.gate.Protect(model.RoleCustomer, h.Create))
	router.GET("/api/v1/bookings", h.gate.Protect(model.RoleCustomer, h.ListMine))
	router.POST("/api/v1/bookings/id/:id/cancel", h.gate.Protect(model.RoleCustomer, h.Cancel))
	router.GET("/api/v1/turfs/id/:id/bookings", h.gate.Protect(model.RoleOwner, h.ListForTurf))
}

func (h *BookingHandler) writeErr(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "operation", "WriteError", "error", writeErr)
	}
}

func parsePagination(query url.Values) (int, int64, error) {
	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, apperrors.InvalidInput(fmt.Sprintf("invalid limit parameter: %s", limitStr))
		}
		limit = parsed
	}

	var offset int64
	if offsetStr := query.Get("offset"); offsetStr != "" {
		parsed, err := strconv.ParseInt(offsetStr, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput(fmt.Sprintf("invalid offset parameter: %s", offsetStr))
		}
		offset = parsed
	}

	return config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset), nil
}

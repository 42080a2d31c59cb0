package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"turfbook/internal/turfs/service"
	"turfbook/pkg/config"
	apperrors "turfbook/pkg/errors"
	httputil "turfbook/pkg/http"
	"turfbook/pkg/logger"
	"turfbook/pkg/middleware"
	"turfbook/pkg/model"
)

type TurfHandler struct {
	service service.TurfService
	gate    *middleware.AccessGate
	log     *logger.Logger
}

func NewTurfHandler(service service.TurfService, gate *middleware.AccessGate, log *logger.Logger) *TurfHandler {
	return &TurfHandler{
		service: service,
		gate:    gate,
		log:     log,
	}
}

func (h *TurfHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeErr(w, "Create", apperrors.Unauthenticated("Missing or invalid authentication token"))
		return
	}

	var turf model.Turf
	if err := json.NewDecoder(r.Body).Decode(&turf); err != nil {
		h.writeErr(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.Create(r.Context(), identity.ActorID, &turf); err != nil {
		h.writeErr(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, turf); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *TurfHandler) ListAvailable(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := parsePagination(r.URL.Query())
	if err != nil {
		h.writeErr(w, "ListAvailable", err)
		return
	}

	turfs, total, err := h.service.ListAvailable(r.Context(), limit, offset)
	if err != nil {
		h.writeErr(w, "ListAvailable", err)
		return
	}

	if err := httputil.WritePaginated(w, turfs, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListAvailable", "operation", "WritePaginated", "error", err)
	}
}

func (h *TurfHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
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

	turfs, total, err := h.service.ListByOwner(r.Context(), identity.ActorID, limit, offset)
	if err != nil {
		h.writeErr(w, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, turfs, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "operation", "WritePaginated", "error", err)
	}
}

func (h *TurfHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeErr(w, "Update", apperrors.Unauthenticated("Missing or invalid authentication token"))
		return
	}

	var updates model.TurfUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeErr(w, "Update", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.Update(r.Context(), ps.ByName("id"), identity.ActorID, &updates); err != nil {
		h.writeErr(w, "Update", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *TurfHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeErr(w, "Delete", apperrors.Unauthenticated("Missing or invalid authentication token"))
		return
	}

	if err := h.service.Delete(r.Context(), ps.ByName("id"), identity.ActorID); err != nil {
		h.writeErr(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *TurfHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/turfs", h.ListAvailable)
	router.POST("/api/v1/turfs", h.gate.Protect(model.RoleOwner, h.Create))
	router.GET("/api/v1/turfs/mine", h.gate.Protect(model.RoleOwner, h.ListMine))
	router.PATCH("/api/v1/turfs/id/:id", h.gate.Protect(model.RoleOwner, h.Update))
	router.DELETE("/api/v1/turfs/id/:id", h.gate.Protect(model.RoleOwner, h.Delete))
}

func (h *TurfHandler) writeErr(w http.ResponseWriter, handlerName string, err error) {
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

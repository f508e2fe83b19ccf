package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/vigil/internal/auth"
	"github.com/BradenHooton/vigil/internal/behavior"
	"github.com/BradenHooton/vigil/internal/models"
	pkghttp "github.com/BradenHooton/vigil/pkg/http"
	"github.com/go-chi/chi/v5"
)

// TrustServiceInterface defines the trust engine operations exposed over HTTP
type TrustServiceInterface interface {
	GetBaseline(ctx context.Context, userID int64) (*models.Baseline, error)
	RebuildBaseline(ctx context.Context, userID, actorID int64) (*models.Baseline, error)
	ListDevices(ctx context.Context, userID int64) ([]models.Device, error)
	RecordEvent(ctx context.Context, userID int64, username string, in behavior.EventInput) (*behavior.EventResult, error)
}

// BehaviorHandler serves behavior events, baselines and devices
type BehaviorHandler struct {
	service  TrustServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewBehaviorHandler creates a new BehaviorHandler
func NewBehaviorHandler(service TrustServiceInterface, ipConfig *pkghttp.IPConfig) *BehaviorHandler {
	return &BehaviorHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// RecordEventRequest is an access or logout event reported by the client
type RecordEventRequest struct {
	Action          string     `json:"action" validate:"required,oneof=ACCESS LOGOUT access logout"`
	Resource        string     `json:"resource" validate:"max=255"`
	SessionID       string     `json:"session_id" validate:"max=128"`
	SessionDuration int        `json:"session_duration" validate:"gte=0"`
	OccurredAt      *time.Time `json:"occurred_at"`
}

// DevicesResponse lists a user's devices
type DevicesResponse struct {
	Devices []models.Device `json:"devices"`
}

// RecordEvent handles POST /behavior/events for the authenticated user
// @Summary Record a behavior event
// @Security BearerAuth
// @Accept json
// @Param request body RecordEventRequest true "Event"
// @Produce json
// @Success 201 {object} behavior.EventResult
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 503 {object} pkghttp.ErrorResponse
// @Router /behavior/events [post]
func (h *BehaviorHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req RecordEventRequest
	if err := DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	in := behavior.EventInput{
		Request:         behavior.RequestContextFromHTTP(r, h.ipConfig),
		Action:          req.Action,
		Resource:        req.Resource,
		SessionID:       req.SessionID,
		SessionDuration: req.SessionDuration,
	}
	if req.OccurredAt != nil {
		in.OccurredAt = *req.OccurredAt
	}

	result, err := h.service.RecordEvent(r.Context(), claims.UserID, claims.Username, in)
	if err != nil {
		writeTrustError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, result)
}

// GetBaseline handles GET /users/{id}/baseline
// @Summary Get a user's behavioral baseline
// @Security BearerAuth
// @Param id path int true "User ID"
// @Produce json
// @Success 200 {object} models.Baseline
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /users/{id}/baseline [get]
func (h *BehaviorHandler) GetBaseline(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUserID(w, r)
	if !ok {
		return
	}

	baseline, err := h.service.GetBaseline(r.Context(), userID)
	if err != nil {
		writeTrustError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, baseline)
}

// RebuildBaseline handles POST /users/{id}/baseline/rebuild. Admin only.
// @Summary Force a baseline rebuild
// @Security BearerAuth
// @Param id path int true "User ID"
// @Produce json
// @Success 200 {object} models.Baseline
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /users/{id}/baseline/rebuild [post]
func (h *BehaviorHandler) RebuildBaseline(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	userID, err := parseUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid user ID")
		return
	}

	baseline, err := h.service.RebuildBaseline(r.Context(), userID, claims.UserID)
	if err != nil {
		writeTrustError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, baseline)
}

// ListDevices handles GET /users/{id}/devices
// @Summary List a user's devices
// @Security BearerAuth
// @Param id path int true "User ID"
// @Produce json
// @Success 200 {object} DevicesResponse
// @Router /users/{id}/devices [get]
func (h *BehaviorHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUserID(w, r)
	if !ok {
		return
	}

	devices, err := h.service.ListDevices(r.Context(), userID)
	if err != nil {
		writeTrustError(w, err)
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, DevicesResponse{Devices: devices})
}

// authorizedUserID parses {id} and checks the caller may read that user's
// data. It writes the error response itself.
func (h *BehaviorHandler) authorizedUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return 0, false
	}

	userID, err := parseUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid user ID")
		return 0, false
	}

	if !auth.CanAccessUser(claims, userID) {
		pkghttp.WriteForbidden(w, "you cannot access this resource")
		return 0, false
	}
	return userID, true
}

func parseUserID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}

// writeTrustError maps trust engine sentinels onto HTTP statuses
func writeTrustError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrStorageUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		pkghttp.WriteServiceUnavailable(w, "Trust engine temporarily unavailable")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"remote-device-manager/internal/domain"
	"remote-device-manager/internal/repository"
	"remote-device-manager/internal/service"
	"remote-device-manager/internal/slave"
	"remote-device-manager/pkg/request"
	"remote-device-manager/pkg/response"

	"github.com/go-playground/validator/v10"
)

// AppiumHandler exposes the allocation surface under /appium.
type AppiumHandler struct {
	allocation     *service.AllocationService
	release        *service.ReleaseService
	classification *service.ClassificationService
	validate       *validator.Validate
}

func NewAppiumHandler(
	allocation *service.AllocationService,
	release *service.ReleaseService,
	classification *service.ClassificationService,
) *AppiumHandler {
	return &AppiumHandler{
		allocation:     allocation,
		release:        release,
		classification: classification,
		validate:       validator.New(),
	}
}

// Allocate long-polls for a matching device. The connection is held open
// until a session is created or the timeout elapses.
func (h *AppiumHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	timeoutSec := int64(-1)
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(w, "invalid timeout parameter")
			return
		}
		timeoutSec = parsed
	}

	var req domain.DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	session, err := h.allocation.Allocate(r.Context(), timeoutSec, &req, request.Caller(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, session)
}

// Unallocate releases every busy device matching the restriction predicate
// and reports whether at least one was released.
func (h *AppiumHandler) Unallocate(w http.ResponseWriter, r *http.Request) {
	var req domain.DeviceRestrictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request payload")
		return
	}

	released, err := h.release.Release(r.Context(), &req, request.Caller(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, len(released) > 0)
}

func (h *AppiumHandler) UnallocateAll(w http.ResponseWriter, r *http.Request) {
	released, err := h.release.ReleaseAll(r.Context(), request.Caller(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, len(released) > 0)
}

func (h *AppiumHandler) Blacklist(w http.ResponseWriter, r *http.Request) {
	h.setBlacklisted(w, r, true)
}

func (h *AppiumHandler) Whitelist(w http.ResponseWriter, r *http.Request) {
	h.setBlacklisted(w, r, false)
}

func (h *AppiumHandler) setBlacklisted(w http.ResponseWriter, r *http.Request, blacklist bool) {
	var req domain.DeviceRestrictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request payload")
		return
	}

	affected, err := h.classification.SetBlacklisted(r.Context(), &req, blacklist, request.Caller(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, affected)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var (
		invalidErr *service.InvalidRequestError
		timeoutErr *service.TimeoutError
		slaveErr   *slave.Error
	)

	switch {
	case errors.As(err, &invalidErr):
		response.BadRequest(w, invalidErr.Error())
	case errors.As(err, &timeoutErr):
		response.RequestTimeout(w, timeoutErr.Error())
	case errors.As(err, &slaveErr):
		response.BadGateway(w, slaveErr.Error())
	case errors.Is(err, repository.ErrNotFound):
		response.NotFound(w, err.Error())
	default:
		response.InternalError(w, err.Error())
	}
}

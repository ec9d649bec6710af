package handler

import (
	"net/http"

	"remote-device-manager/internal/service"
	"remote-device-manager/pkg/response"
)

// DeviceHandler serves read-only fleet state.
type DeviceHandler struct {
	service *service.DeviceService
}

func NewDeviceHandler(service *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{
		service: service,
	}
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.service.List(r.Context())
	if err != nil {
		response.InternalError(w, "failed to list devices")
		return
	}

	response.Success(w, devices)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"remote-device-manager/internal/domain"
	"remote-device-manager/internal/repository"
	"remote-device-manager/internal/slave"
	"remote-device-manager/internal/websocket"

	"github.com/rs/zerolog"
)

const (
	// MaxTimeout caps how long an allocation request may wait for a device.
	MaxTimeout = 900 * time.Second

	// DefaultPollingFreq is the delay between allocation polling cycles
	// when none is configured.
	DefaultPollingFreq = 5 * time.Second
)

// AllocationService is the long-polling allocation scheduler. Each call
// polls the repository until a matching device is reserved or the deadline
// elapses; the reserved device's slave is then asked to start an appium
// session.
type AllocationService struct {
	repo         repository.DeviceRepository
	slaves       slave.Client
	matcher      *CapabilityMatcher
	reservations *ReservationService
	events       *websocket.Hub
	pollingFreq  time.Duration
	log          zerolog.Logger

	// mu makes (match -> mark busy) atomic with respect to other
	// allocators. It is never held across slave HTTP calls.
	mu sync.Mutex
}

func NewAllocationService(
	repo repository.DeviceRepository,
	slaves slave.Client,
	matcher *CapabilityMatcher,
	reservations *ReservationService,
	events *websocket.Hub,
	pollingFreq time.Duration,
	log zerolog.Logger,
) *AllocationService {
	if pollingFreq <= 0 {
		pollingFreq = DefaultPollingFreq
	}
	return &AllocationService{
		repo:         repo,
		slaves:       slaves,
		matcher:      matcher,
		reservations: reservations,
		events:       events,
		pollingFreq:  pollingFreq,
		log:          log,
	}
}

// Allocate reserves a device matching the request and returns its session
// descriptor. A negative timeout means "wait up to the cap". Transient
// failures (no match, lost races, repository hiccups) are retried every
// polling cycle until the deadline; slave failures surface immediately
// after the reservation is rolled back.
func (s *AllocationService) Allocate(ctx context.Context, timeoutSec int64, req *domain.DeviceRequest, caller domain.Caller) (*domain.AppiumSession, error) {
	if err := validateDeviceRequest(req); err != nil {
		return nil, err
	}

	timeout := time.Duration(timeoutSec) * time.Second
	if timeoutSec < 0 {
		timeout = MaxTimeout
	}

	s.log.Info().
		Str("request_id", caller.RequestID).
		Str("user", caller.User).
		Str("client_ip", caller.ClientIP).
		Stringer("request", req).
		Dur("timeout", timeout).
		Msg("device allocation requested")

	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		session, err := s.tryAllocate(deadlineCtx, req, caller)
		if err == nil {
			s.log.Info().
				Str("request_id", caller.RequestID).
				Str("device_id", session.DeviceID).
				Str("slave_addr", session.SlaveAddr).
				Msg("device allocated")
			return session, nil
		}

		var slaveErr *slave.Error
		if errors.As(err, &slaveErr) {
			return nil, err
		}
		if !errors.Is(err, ErrNoMatch) {
			s.log.Warn().
				Str("request_id", caller.RequestID).
				Err(err).
				Msg("allocation cycle failed, retrying")
		}

		select {
		case <-deadlineCtx.Done():
			// A caller that went away is not a timeout.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TimeoutError{Request: req, Timeout: timeout}
		case <-time.After(s.pollingFreq):
		}
	}
}

func (s *AllocationService) tryAllocate(ctx context.Context, req *domain.DeviceRequest, caller domain.Caller) (*domain.AppiumSession, error) {
	device, err := s.reserve(ctx, req, caller)
	if err != nil {
		return nil, err
	}

	sessionURL, err := s.slaves.CreateSession(ctx, device.SlaveAddr, slave.CreateSessionRequest{
		DeviceID:      device.DeviceID,
		ClearUserData: req.ClearUserData,
		AppPackage:    strings.TrimSpace(req.AppPackage),
	}, caller.RequestID)
	if err != nil {
		// Roll the reservation back so a failing slave does not leak the
		// device until someone notices. The rollback must survive the
		// caller's deadline.
		if _, rbErr := s.reservations.Transition(context.WithoutCancel(ctx), device.DeviceID, device.SlaveAddr, domain.StatusFree, caller); rbErr != nil {
			s.log.Error().
				Str("device_id", device.DeviceID).
				Str("slave_addr", device.SlaveAddr).
				Err(rbErr).
				Msg("failed to roll back reservation after slave failure")
		}
		return nil, err
	}

	s.events.Publish(websocket.NewEvent(websocket.EventDeviceAllocated, device.DeviceID, device.SlaveAddr, caller.User))

	return &domain.AppiumSession{
		DeviceID:     device.DeviceID,
		DeviceName:   device.DisplayName(),
		IsAndroid:    device.Information.IsAndroid,
		IsRealDevice: device.Information.IsRealDevice,
		SDKVersion:   device.Information.SDKVersion,
		SlaveAddr:    device.SlaveAddr,
		SessionURL:   sessionURL,
		LogsURL:      LogsURL(device.SlaveAddr, device.DeviceID, caller.RequestID),
	}, nil
}

func (s *AllocationService) reserve(ctx context.Context, req *domain.DeviceRequest, caller domain.Caller) (*domain.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	device, ok := s.matcher.Match(req, devices)
	if !ok {
		return nil, ErrNoMatch
	}

	return s.reservations.Transition(ctx, device.DeviceID, device.SlaveAddr, domain.StatusBusy, caller)
}

func validateDeviceRequest(req *domain.DeviceRequest) error {
	android, err := req.Android()
	if err != nil {
		return &InvalidRequestError{Reason: err.Error()}
	}
	if req.ClearUserData && android != nil && *android && strings.TrimSpace(req.AppPackage) == "" {
		return &InvalidRequestError{Reason: "'app_package' is needed when 'clear_user_data' is set to 'true'"}
	}
	return nil
}

// LogsURL points at the appium log the slave writes for one allocation.
func LogsURL(slaveAddr, deviceID, requestID string) string {
	return fmt.Sprintf("http://%s:%d/remote-slave/appium/logs/%s/%s.log", slaveAddr, slave.Port, deviceID, requestID)
}

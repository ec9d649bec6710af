package service

import (
	"context"
	"errors"
	"sync"

	"remote-device-manager/internal/domain"
	"remote-device-manager/internal/repository"
	"remote-device-manager/internal/slave"
	"remote-device-manager/internal/websocket"

	"github.com/rs/zerolog"
)

// ReleaseService tears appium sessions down and flips reservations back to
// free. Batch releases run per-device in parallel; a failing slave only
// loses its own device, never the batch.
type ReleaseService struct {
	repo         repository.DeviceRepository
	slaves       slave.Client
	matcher      *CapabilityMatcher
	reservations *ReservationService
	events       *websocket.Hub
	log          zerolog.Logger
}

func NewReleaseService(
	repo repository.DeviceRepository,
	slaves slave.Client,
	matcher *CapabilityMatcher,
	reservations *ReservationService,
	events *websocket.Hub,
	log zerolog.Logger,
) *ReleaseService {
	return &ReleaseService{
		repo:         repo,
		slaves:       slaves,
		matcher:      matcher,
		reservations: reservations,
		events:       events,
		log:          log,
	}
}

// ReleaseAll releases every busy device in the fleet.
func (s *ReleaseService) ReleaseAll(ctx context.Context, caller domain.Caller) ([]*domain.Device, error) {
	devices, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.releaseBatch(ctx, devices, caller), nil
}

// Release releases the busy devices matching the restriction predicate. A
// nil request is treated as "all".
func (s *ReleaseService) Release(ctx context.Context, req *domain.DeviceRestrictionRequest, caller domain.Caller) ([]*domain.Device, error) {
	if req == nil {
		return s.ReleaseAll(ctx, caller)
	}

	devices, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	var targets []*domain.Device
	for _, device := range devices {
		if !device.Free && s.matcher.MatchesRestriction(req, device) {
			targets = append(targets, device)
		}
	}

	return s.releaseBatch(ctx, targets, caller), nil
}

func (s *ReleaseService) releaseBatch(ctx context.Context, devices []*domain.Device, caller domain.Caller) []*domain.Device {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		released []*domain.Device
	)

	for _, device := range devices {
		wg.Add(1)
		go func(device *domain.Device) {
			defer wg.Done()

			ok, err := s.ReleaseOne(ctx, device.DeviceID, device.SlaveAddr, caller)
			if err != nil {
				s.log.Error().
					Str("request_id", caller.RequestID).
					Str("device_id", device.DeviceID).
					Str("slave_addr", device.SlaveAddr).
					Err(err).
					Msg("failed to release device")
				return
			}
			if ok {
				mu.Lock()
				released = append(released, device)
				mu.Unlock()
			}
		}(device)
	}

	wg.Wait()
	return released
}

// ReleaseOne releases a single device. Unknown and already-free devices are
// no-ops; the slave stop endpoint is never called for them. When the stop
// call fails the device stays busy, since its session may still be running.
func (s *ReleaseService) ReleaseOne(ctx context.Context, deviceID, slaveAddr string, caller domain.Caller) (bool, error) {
	device, err := s.repo.FindByID(ctx, deviceID, slaveAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if device.Free {
		return false, nil
	}

	s.log.Info().
		Str("request_id", caller.RequestID).
		Str("device_id", deviceID).
		Str("slave_addr", slaveAddr).
		Msg("stopping appium session")

	if err := s.slaves.StopSession(ctx, slaveAddr, slave.StopSessionRequest{
		DeviceID:  deviceID,
		IsAndroid: device.Information.IsAndroid,
	}, caller.RequestID); err != nil {
		return false, err
	}

	if _, err := s.reservations.Transition(ctx, deviceID, slaveAddr, domain.StatusFree, caller); err != nil {
		return false, err
	}

	s.events.Publish(websocket.NewEvent(websocket.EventDeviceReleased, deviceID, slaveAddr, caller.User))
	return true, nil
}

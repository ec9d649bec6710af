package service

import (
	"context"
	"sync"
	"time"

	"remote-device-manager/internal/domain"
	"remote-device-manager/internal/repository"

	"github.com/rs/zerolog"
)

// ReservationService owns every free/busy transition of a device. All
// transitions are serialized through its mutex, so two concurrent attempts
// to mark the same device busy produce exactly one success and one
// ErrConflict.
type ReservationService struct {
	repo repository.DeviceRepository
	log  zerolog.Logger

	mu sync.Mutex
}

func NewReservationService(repo repository.DeviceRepository, log zerolog.Logger) *ReservationService {
	return &ReservationService{
		repo: repo,
		log:  log,
	}
}

// Transition moves a device to the target state and records the allocation
// trail. Returns repository.ErrNotFound for unknown devices and ErrConflict
// when a busy target is already busy.
func (s *ReservationService) Transition(ctx context.Context, deviceID, slaveAddr string, target domain.DeviceStatus, caller domain.Caller) (*domain.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, err := s.repo.FindByID(ctx, deviceID, slaveAddr)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	switch target {
	case domain.StatusBusy:
		if !device.Free {
			return nil, ErrConflict
		}
		device.Free = false
		device.LastAllocationStart = &now
		device.LastAllocationEnd = nil
		device.LastAllocatedTo = caller.AllocatedTo()
	case domain.StatusFree:
		device.Free = true
		device.LastAllocatedTo = nil
		device.LastAllocationEnd = &now
		if device.LastAllocationStart != nil {
			device.LastSessionDuration = now.Sub(*device.LastAllocationStart).Milliseconds()
		}
	}

	saved, err := s.repo.Save(ctx, device)
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("device_id", deviceID).
		Str("slave_addr", slaveAddr).
		Str("target", string(target)).
		Str("user", caller.User).
		Msg("device reservation transition")

	return saved, nil
}

// SetBlacklisted flips only the blacklist flag, reloading the device under
// the same mutex as Transition so a concurrent reservation is never
// overwritten by a stale snapshot.
func (s *ReservationService) SetBlacklisted(ctx context.Context, deviceID, slaveAddr string, blacklist bool) (*domain.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, err := s.repo.FindByID(ctx, deviceID, slaveAddr)
	if err != nil {
		return nil, err
	}

	device.Blacklisted = blacklist

	return s.repo.Save(ctx, device)
}

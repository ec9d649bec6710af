package service

import (
	"context"

	"remote-device-manager/internal/domain"
	"remote-device-manager/internal/repository"
)

// DeviceService serves fleet visibility reads.
type DeviceService struct {
	repo repository.DeviceRepository
}

func NewDeviceService(repo repository.DeviceRepository) *DeviceService {
	return &DeviceService{
		repo: repo,
	}
}

func (s *DeviceService) List(ctx context.Context) ([]*domain.Device, error) {
	return s.repo.FindAll(ctx)
}

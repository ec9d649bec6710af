package service

import (
	"context"

	"remote-device-manager/internal/domain"
	"remote-device-manager/internal/repository"
	"remote-device-manager/internal/websocket"

	"github.com/rs/zerolog"
)

// ClassificationService applies blacklist/whitelist flags by predicate.
// Flag writes go through the reservation mutex so they compose with
// in-flight allocations; a busy device can be blacklisted and simply
// won't be matched again once freed.
type ClassificationService struct {
	repo         repository.DeviceRepository
	matcher      *CapabilityMatcher
	reservations *ReservationService
	events       *websocket.Hub
	log          zerolog.Logger
}

func NewClassificationService(
	repo repository.DeviceRepository,
	matcher *CapabilityMatcher,
	reservations *ReservationService,
	events *websocket.Hub,
	log zerolog.Logger,
) *ClassificationService {
	return &ClassificationService{
		repo:         repo,
		matcher:      matcher,
		reservations: reservations,
		events:       events,
		log:          log,
	}
}

// SetBlacklisted flips the blacklist flag on every matching device whose
// flag differs and returns their information records.
func (s *ClassificationService) SetBlacklisted(ctx context.Context, req *domain.DeviceRestrictionRequest, blacklist bool, caller domain.Caller) ([]domain.DeviceInformation, error) {
	if req == nil || !req.HasAttributes() {
		return nil, &InvalidRequestError{Reason: "at least one attribute is needed in the restriction request"}
	}

	devices, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	event := websocket.EventDeviceBlacklisted
	if !blacklist {
		event = websocket.EventDeviceWhitelisted
	}

	// The snapshot only selects devices; the flag is flipped against a
	// fresh read inside the reservation mutex so an allocation landing
	// after the snapshot is not reverted.
	affected := make([]domain.DeviceInformation, 0)
	for _, device := range devices {
		if device.Blacklisted == blacklist || !s.matcher.MatchesRestriction(req, device) {
			continue
		}

		saved, err := s.reservations.SetBlacklisted(ctx, device.DeviceID, device.SlaveAddr, blacklist)
		if err != nil {
			return affected, err
		}

		affected = append(affected, saved.Information)
		s.events.Publish(websocket.NewEvent(event, saved.DeviceID, saved.SlaveAddr, caller.User))
	}

	s.log.Info().
		Str("request_id", caller.RequestID).
		Str("user", caller.User).
		Bool("blacklist", blacklist).
		Int("affected", len(affected)).
		Msg("device classification updated")

	return affected, nil
}

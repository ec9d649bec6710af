package websocket

import "time"

type EventType string

const (
	EventDeviceAllocated   EventType = "device_allocated"
	EventDeviceReleased    EventType = "device_released"
	EventDeviceBlacklisted EventType = "device_blacklisted"
	EventDeviceWhitelisted EventType = "device_whitelisted"
)

// Event is one fleet state change pushed to /ws subscribers.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	SlaveAddr string    `json:"slave_addr"`
	User      string    `json:"user,omitempty"`
}

func NewEvent(eventType EventType, deviceID, slaveAddr, user string) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		DeviceID:  deviceID,
		SlaveAddr: slaveAddr,
		User:      user,
	}
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"remote-device-manager/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// ErrNotFound is returned when no device exists for a (deviceID, slaveAddr) key.
var ErrNotFound = errors.New("device not found")

// DeviceRepository is the persistent mapping (deviceID, slaveAddr) -> Device.
// FindAll returns devices in the store's native order; the matcher relies on
// that order being stable between calls.
type DeviceRepository interface {
	FindAll(ctx context.Context) ([]*domain.Device, error)
	FindByID(ctx context.Context, deviceID, slaveAddr string) (*domain.Device, error)
	Save(ctx context.Context, device *domain.Device) (*domain.Device, error)
}

const recordType = "device"

type deviceDoc struct {
	ID         string `json:"_id"`
	Rev        string `json:"_rev,omitempty"`
	RecordType string `json:"record_type"`
	domain.Device
}

type couchDeviceRepository struct {
	client *kivik.Client
	dbName string
}

func NewDeviceRepository(client *kivik.Client, dbName string) DeviceRepository {
	return &couchDeviceRepository{
		client: client,
		dbName: dbName,
	}
}

func docID(deviceID, slaveAddr string) string {
	return fmt.Sprintf("device:%s:%s", slaveAddr, deviceID)
}

func (r *couchDeviceRepository) FindAll(ctx context.Context) ([]*domain.Device, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"record_type": recordType,
		},
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*domain.Device
	for rows.Next() {
		var doc deviceDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue // Skip malformed docs
		}
		device := doc.Device
		devices = append(devices, &device)
	}

	return devices, nil
}

func (r *couchDeviceRepository) FindByID(ctx context.Context, deviceID, slaveAddr string) (*domain.Device, error) {
	db := r.client.DB(r.dbName)

	row := db.Get(ctx, docID(deviceID, slaveAddr))

	var doc deviceDoc
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find device: %w", err)
	}

	return &doc.Device, nil
}

func (r *couchDeviceRepository) Save(ctx context.Context, device *domain.Device) (*domain.Device, error) {
	db := r.client.DB(r.dbName)

	id := docID(device.DeviceID, device.SlaveAddr)

	doc := deviceDoc{
		ID:         id,
		RecordType: recordType,
		Device:     *device,
	}

	var existing deviceDoc
	row := db.Get(ctx, id)
	if err := row.ScanDoc(&existing); err == nil {
		doc.Rev = existing.Rev
	} else if kivik.HTTPStatus(err) != http.StatusNotFound {
		return nil, fmt.Errorf("failed to load device revision: %w", err)
	}

	if _, err := db.Put(ctx, id, doc); err != nil {
		return nil, fmt.Errorf("failed to save device: %w", err)
	}

	return device, nil
}

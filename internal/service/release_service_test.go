package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"remote-device-manager/internal/domain"
	"remote-device-manager/internal/slave"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingOnceSlaveClient fails the first stop call and delegates the rest.
type failingOnceSlaveClient struct {
	mu     sync.Mutex
	failed bool
	inner  *fakeSlaveClient
}

func (f *failingOnceSlaveClient) CreateSession(ctx context.Context, slaveAddr string, req slave.CreateSessionRequest, requestID string) (string, error) {
	return f.inner.CreateSession(ctx, slaveAddr, req, requestID)
}

func (f *failingOnceSlaveClient) StopSession(ctx context.Context, slaveAddr string, req slave.StopSessionRequest, requestID string) error {
	f.mu.Lock()
	first := !f.failed
	f.failed = true
	f.mu.Unlock()

	if first {
		return &slave.Error{SlaveAddr: slaveAddr, StatusCode: 500, Body: "boom"}
	}
	return f.inner.StopSession(ctx, slaveAddr, req, requestID)
}

func newReleaseService(repo *mockDeviceRepo, slaves *fakeSlaveClient) *ReleaseService {
	reservations := NewReservationService(repo, zerolog.Nop())
	return NewReleaseService(repo, slaves, NewCapabilityMatcher(), reservations, nil, zerolog.Nop())
}

func busyDevice(id, slaveAddr, manufacturer string) *domain.Device {
	device := freeDevice(id, slaveAddr)
	device.Information.Manufacturer = manufacturer
	device.Free = false
	now := time.Now()
	device.LastAllocationStart = &now
	device.LastAllocatedTo = testCaller.AllocatedTo()
	return device
}

func TestRelease_BatchByPredicate(t *testing.T) {
	repo := newMockDeviceRepo(
		busyDevice("A", "10.0.0.1", "Pixel"),
		busyDevice("B", "10.0.0.2", "Pixel"),
		busyDevice("C", "10.0.0.3", "Samsung"),
	)
	slaves := &fakeSlaveClient{}
	svc := newReleaseService(repo, slaves)

	released, err := svc.Release(context.Background(), &domain.DeviceRestrictionRequest{Brand: "Pixel"}, testCaller)
	require.NoError(t, err)
	require.Len(t, released, 2)
	assert.Equal(t, 2, slaves.stopCount())

	assert.True(t, repo.get("A", "10.0.0.1").Free)
	assert.True(t, repo.get("B", "10.0.0.2").Free)
	assert.False(t, repo.get("C", "10.0.0.3").Free)
}

func TestRelease_AlreadyFreeIsNoOp(t *testing.T) {
	repo := newMockDeviceRepo(freeDevice("A", "10.0.0.1"))
	slaves := &fakeSlaveClient{}
	svc := newReleaseService(repo, slaves)

	released, err := svc.Release(context.Background(), &domain.DeviceRestrictionRequest{DeviceID: []string{"A"}}, testCaller)
	require.NoError(t, err)
	assert.Empty(t, released)
	assert.Zero(t, slaves.stopCount())
}

func TestReleaseOne_UnknownDevice(t *testing.T) {
	repo := newMockDeviceRepo()
	svc := newReleaseService(repo, &fakeSlaveClient{})

	ok, err := svc.ReleaseOne(context.Background(), "ghost", "10.0.0.1", testCaller)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReleaseOne_ClearsAllocationTrail(t *testing.T) {
	repo := newMockDeviceRepo(busyDevice("A", "10.0.0.1", "Pixel"))
	slaves := &fakeSlaveClient{}
	svc := newReleaseService(repo, slaves)

	ok, err := svc.ReleaseOne(context.Background(), "A", "10.0.0.1", testCaller)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, slaves.stopCalls, 1)
	assert.Equal(t, "A", slaves.stopCalls[0].DeviceID)
	assert.True(t, slaves.stopCalls[0].IsAndroid)

	device := repo.get("A", "10.0.0.1")
	assert.True(t, device.Free)
	assert.Nil(t, device.LastAllocatedTo)
	require.NotNil(t, device.LastAllocationEnd)
	assert.Equal(t, device.LastAllocationEnd.Sub(*device.LastAllocationStart).Milliseconds(), device.LastSessionDuration)
}

func TestRelease_SlaveFailureDoesNotAbortBatch(t *testing.T) {
	repo := newMockDeviceRepo(
		busyDevice("A", "10.0.0.1", "Pixel"),
		busyDevice("B", "10.0.0.2", "Pixel"),
	)

	slaves := &fakeSlaveClient{}
	svc := newReleaseService(repo, slaves)

	// First stop call fails, the second succeeds.
	failing := &failingOnceSlaveClient{inner: slaves}
	svc.slaves = failing

	released, err := svc.Release(context.Background(), &domain.DeviceRestrictionRequest{Brand: "Pixel"}, testCaller)
	require.NoError(t, err)

	// One device released, the failed one stays busy.
	require.Len(t, released, 1)
	freed := repo.get(released[0].DeviceID, released[0].SlaveAddr)
	assert.True(t, freed.Free)

	stillBusy := 0
	for _, id := range []string{"A", "B"} {
		addr := map[string]string{"A": "10.0.0.1", "B": "10.0.0.2"}[id]
		if !repo.get(id, addr).Free {
			stillBusy++
		}
	}
	assert.Equal(t, 1, stillBusy)
}

func TestReleaseAll_OnlyTouchesBusyDevices(t *testing.T) {
	repo := newMockDeviceRepo(
		busyDevice("A", "10.0.0.1", "Pixel"),
		freeDevice("B", "10.0.0.2"),
	)
	slaves := &fakeSlaveClient{}
	svc := newReleaseService(repo, slaves)

	released, err := svc.ReleaseAll(context.Background(), testCaller)
	require.NoError(t, err)

	require.Len(t, released, 1)
	assert.Equal(t, "A", released[0].DeviceID)
	assert.Equal(t, 1, slaves.stopCount())
	assert.True(t, repo.get("A", "10.0.0.1").Free)
}

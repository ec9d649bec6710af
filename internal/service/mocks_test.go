package service

import (
	"context"
	"sync"

	"remote-device-manager/internal/domain"
	"remote-device-manager/internal/repository"
	"remote-device-manager/internal/slave"
)

// mockDeviceRepo is an in-memory DeviceRepository. It hands out copies so
// state only changes through Save, like a real store.
type mockDeviceRepo struct {
	mu      sync.Mutex
	order   []string
	devices map[string]*domain.Device

	// afterFindAll, when set, runs once the snapshot has been taken.
	// Lets tests change state between a caller's read and its write.
	afterFindAll func()
}

func newMockDeviceRepo(devices ...*domain.Device) *mockDeviceRepo {
	m := &mockDeviceRepo{devices: make(map[string]*domain.Device)}
	for _, d := range devices {
		m.put(d)
	}
	return m
}

func repoKey(deviceID, slaveAddr string) string {
	return slaveAddr + "/" + deviceID
}

func cloneDevice(d *domain.Device) *domain.Device {
	c := *d
	if d.LastAllocationStart != nil {
		t := *d.LastAllocationStart
		c.LastAllocationStart = &t
	}
	if d.LastAllocationEnd != nil {
		t := *d.LastAllocationEnd
		c.LastAllocationEnd = &t
	}
	if d.LastAllocatedTo != nil {
		a := *d.LastAllocatedTo
		c.LastAllocatedTo = &a
	}
	return &c
}

func (m *mockDeviceRepo) put(d *domain.Device) {
	key := repoKey(d.DeviceID, d.SlaveAddr)
	if _, exists := m.devices[key]; !exists {
		m.order = append(m.order, key)
	}
	m.devices[key] = cloneDevice(d)
}

func (m *mockDeviceRepo) FindAll(_ context.Context) ([]*domain.Device, error) {
	m.mu.Lock()
	devices := make([]*domain.Device, 0, len(m.order))
	for _, key := range m.order {
		devices = append(devices, cloneDevice(m.devices[key]))
	}
	m.mu.Unlock()

	if m.afterFindAll != nil {
		m.afterFindAll()
	}
	return devices, nil
}

func (m *mockDeviceRepo) FindByID(_ context.Context, deviceID, slaveAddr string) (*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d, exists := m.devices[repoKey(deviceID, slaveAddr)]; exists {
		return cloneDevice(d), nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockDeviceRepo) Save(_ context.Context, device *domain.Device) (*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(device)
	return cloneDevice(device), nil
}

func (m *mockDeviceRepo) get(deviceID, slaveAddr string) *domain.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneDevice(m.devices[repoKey(deviceID, slaveAddr)])
}

// fakeSlaveClient records calls and replies with canned results.
type fakeSlaveClient struct {
	mu          sync.Mutex
	sessionURL  string
	createErr   error
	stopErr     error
	createCalls []slave.CreateSessionRequest
	stopCalls   []slave.StopSessionRequest
}

func (f *fakeSlaveClient) CreateSession(_ context.Context, slaveAddr string, req slave.CreateSessionRequest, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls = append(f.createCalls, req)
	if f.createErr != nil {
		return "", f.createErr
	}
	if f.sessionURL != "" {
		return f.sessionURL, nil
	}
	return "http://" + slaveAddr + ":4723/wd/hub/session/abc", nil
}

func (f *fakeSlaveClient) StopSession(_ context.Context, _ string, req slave.StopSessionRequest, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopCalls = append(f.stopCalls, req)
	return f.stopErr
}

func (f *fakeSlaveClient) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.createCalls)
}

func (f *fakeSlaveClient) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stopCalls)
}

func freeDevice(id, slaveAddr string) *domain.Device {
	return &domain.Device{
		DeviceID:  id,
		SlaveAddr: slaveAddr,
		Information: domain.DeviceInformation{
			DeviceID:     id,
			IsAndroid:    true,
			IsRealDevice: true,
			Manufacturer: "Samsung",
			Model:        "SM-G991B",
			SDKVersion:   "12.0",
		},
		Free: true,
	}
}

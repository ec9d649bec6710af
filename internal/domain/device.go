package domain

import "time"

// DeviceStatus is the target state of a reservation transition.
type DeviceStatus string

const (
	StatusFree DeviceStatus = "free"
	StatusBusy DeviceStatus = "busy"
)

// Device is one attached mobile device owned by a slave host.
// (DeviceID, SlaveAddr) is the unique key: the same vendor id can show up
// on two different slaves.
type Device struct {
	DeviceID            string            `json:"device_id"`
	SlaveAddr           string            `json:"slave_addr"`
	Information         DeviceInformation `json:"device_information"`
	Free                bool              `json:"free"`
	Blacklisted         bool              `json:"blacklisted"`
	LastAllocationStart *time.Time        `json:"last_allocation_start,omitempty"`
	LastAllocationEnd   *time.Time        `json:"last_allocation_end,omitempty"`
	LastSessionDuration int64             `json:"last_session_duration_ms"`
	LastAllocatedTo     *AllocatedTo      `json:"last_allocated_to,omitempty"`
}

type DeviceInformation struct {
	DeviceID     string `json:"device_id"`
	IsAndroid    bool   `json:"is_android"`
	IsRealDevice bool   `json:"is_real_device"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	MarketName   string `json:"market_name,omitempty"`
	SDKVersion   string `json:"sdk_version"`
}

// AllocatedTo records who holds the current (or held the last) reservation.
type AllocatedTo struct {
	ClientIP       string `json:"client_ip"`
	User           string `json:"user"`
	JenkinsJobLink string `json:"jenkins_job_link"`
}

// Caller carries the identity headers of an incoming request through the
// allocation and release paths.
type Caller struct {
	RequestID      string
	ClientIP       string
	User           string
	JenkinsJobLink string
}

func (c Caller) AllocatedTo() *AllocatedTo {
	return &AllocatedTo{
		ClientIP:       c.ClientIP,
		User:           c.User,
		JenkinsJobLink: c.JenkinsJobLink,
	}
}

// DisplayName prefers the market name when the vendor reports one.
func (d *Device) DisplayName() string {
	if d.Information.MarketName != "" {
		return d.Information.MarketName
	}
	return d.Information.Model
}

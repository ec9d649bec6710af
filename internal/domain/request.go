package domain

import (
	"fmt"
	"strings"
)

// DeviceRequest is the capability predicate of an allocation request.
// Every field is optional; an empty field means "any".
type DeviceRequest struct {
	IsAndroid     string   `json:"is_android,omitempty" validate:"omitempty,oneof=true false"`
	DeviceID      []string `json:"device_id,omitempty"`
	Brand         string   `json:"brand,omitempty"`
	DeviceName    string   `json:"device_name,omitempty"`
	SDKVersion    string   `json:"sdk_version,omitempty"`
	SlaveAddr     string   `json:"slave_addr,omitempty"`
	ClearUserData bool     `json:"clear_user_data,omitempty"`
	AppPackage    string   `json:"app_package,omitempty" validate:"required_if=ClearUserData true IsAndroid true"`
}

// Android interprets the stringly-typed is_android field as a tri-valued
// boolean: nil means the platform was not specified.
func (r *DeviceRequest) Android() (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(r.IsAndroid)) {
	case "":
		return nil, nil
	case "true":
		v := true
		return &v, nil
	case "false":
		v := false
		return &v, nil
	default:
		return nil, fmt.Errorf("invalid is_android value %q", r.IsAndroid)
	}
}

func (r *DeviceRequest) String() string {
	var b strings.Builder
	b.WriteString("{")
	if r.IsAndroid != "" {
		fmt.Fprintf(&b, "is_android:%s ", r.IsAndroid)
	}
	if len(r.DeviceID) > 0 {
		fmt.Fprintf(&b, "device_id:%v ", r.DeviceID)
	}
	if r.Brand != "" {
		fmt.Fprintf(&b, "brand:%s ", r.Brand)
	}
	if r.DeviceName != "" {
		fmt.Fprintf(&b, "device_name:%s ", r.DeviceName)
	}
	if r.SDKVersion != "" {
		fmt.Fprintf(&b, "sdk_version:%s ", r.SDKVersion)
	}
	if r.SlaveAddr != "" {
		fmt.Fprintf(&b, "slave_addr:%s ", r.SlaveAddr)
	}
	if r.ClearUserData {
		fmt.Fprintf(&b, "clear_user_data:true app_package:%s ", r.AppPackage)
	}
	return strings.TrimSpace(b.String()) + "}"
}

// DeviceRestrictionRequest selects devices for release and for
// blacklisting/whitelisting. Blacklist and whitelist calls require at
// least one attribute to be set.
type DeviceRestrictionRequest struct {
	DeviceID   []string `json:"device_id,omitempty"`
	Brand      string   `json:"brand,omitempty"`
	DeviceName string   `json:"device_name,omitempty"`
	SDKVersion string   `json:"sdk_version,omitempty"`
	SlaveAddr  string   `json:"slave_addr,omitempty"`
}

func (r *DeviceRestrictionRequest) HasAttributes() bool {
	return len(r.DeviceID) > 0 ||
		strings.TrimSpace(r.Brand) != "" ||
		strings.TrimSpace(r.DeviceName) != "" ||
		strings.TrimSpace(r.SDKVersion) != "" ||
		strings.TrimSpace(r.SlaveAddr) != ""
}

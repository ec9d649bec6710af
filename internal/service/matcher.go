package service

import (
	"strconv"
	"strings"

	"remote-device-manager/internal/domain"
)

// CapabilityMatcher decides which devices satisfy a request predicate. It
// is a pure function over a repository snapshot; callers own the critical
// section around matching and reserving.
type CapabilityMatcher struct{}

func NewCapabilityMatcher() *CapabilityMatcher {
	return &CapabilityMatcher{}
}

// Match returns the first free, non-blacklisted device satisfying every
// specified attribute of the request, in snapshot order.
func (m *CapabilityMatcher) Match(req *domain.DeviceRequest, devices []*domain.Device) (*domain.Device, bool) {
	android, err := req.Android()
	if err != nil {
		return nil, false
	}

	for _, device := range devices {
		if !device.Free || device.Blacklisted {
			continue
		}
		if !matchesAttributes(req.DeviceID, req.Brand, req.DeviceName, req.SDKVersion, req.SlaveAddr, device) {
			continue
		}
		if android != nil && *android != device.Information.IsAndroid {
			continue
		}
		return device, true
	}

	return nil, false
}

// MatchesRestriction applies the attribute rules of a restriction predicate
// without the free/blacklist gate. Shared by the release and
// blacklist/whitelist paths.
func (m *CapabilityMatcher) MatchesRestriction(req *domain.DeviceRestrictionRequest, device *domain.Device) bool {
	return matchesAttributes(req.DeviceID, req.Brand, req.DeviceName, req.SDKVersion, req.SlaveAddr, device)
}

func matchesAttributes(ids []string, brand, deviceName, sdkVersion, slaveAddr string, device *domain.Device) bool {
	if len(ids) > 0 && !contains(ids, device.DeviceID) {
		return false
	}
	if !blankOrEqualFold(slaveAddr, device.SlaveAddr) {
		return false
	}
	if !blankOrEqualFold(brand, device.Information.Manufacturer) {
		return false
	}
	if name := strings.TrimSpace(deviceName); name != "" {
		// The market name only participates when the vendor reports one;
		// otherwise the rule reduces to the model.
		if !strings.EqualFold(name, device.Information.Model) &&
			(device.Information.MarketName == "" || !strings.EqualFold(name, device.Information.MarketName)) {
			return false
		}
	}
	if v := strings.TrimSpace(sdkVersion); v != "" {
		want := majorVersion(v)
		if want < 0 || want != majorVersion(device.Information.SDKVersion) {
			return false
		}
	}
	return true
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func blankOrEqualFold(want, have string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(want, have)
}

// majorVersion returns the leading integer of a dotted version string, or
// -1 when it cannot be parsed.
func majorVersion(version string) int {
	head, _, _ := strings.Cut(strings.TrimSpace(version), ".")
	n, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return -1
	}
	return n
}

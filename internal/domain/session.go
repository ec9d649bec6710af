package domain

// AppiumSession is the descriptor handed back to the client after a
// successful allocation.
type AppiumSession struct {
	DeviceID     string `json:"device_id"`
	DeviceName   string `json:"device_name"`
	IsAndroid    bool   `json:"is_android"`
	IsRealDevice bool   `json:"is_real_device"`
	SDKVersion   string `json:"sdk_version"`
	SlaveAddr    string `json:"slave_addr"`
	SessionURL   string `json:"session_url"`
	LogsURL      string `json:"logs_url"`
}

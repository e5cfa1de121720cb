package config

import (
	"sort"
	"strings"
	"time"
)

// Registry represents the entire console configuration file.
// It stores user-defined metadata for readers and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by reader serial number
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents user-defined metadata for a single reader.
// This is keyed by the reader's serial number in the Registry.
type Device struct {
	Nickname string    `yaml:"nickname,omitempty"`  // User-friendly name
	LastURL  string    `yaml:"last_url,omitempty"`  // Last known service base URL
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last discovery/connection time
	Product  string    `yaml:"product,omitempty"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	AutoDiscover    bool       `yaml:"auto_discover"`          // Enable automatic mDNS discovery on startup
	DiscoverTimeout int        `yaml:"discover_timeout"`       // mDNS discovery timeout in seconds
	RequestTimeout  int        `yaml:"request_timeout"`        // REST request timeout in seconds
	DefaultAuth     *AuthPrefs `yaml:"default_auth,omitempty"` // Default authentication preferences
}

// AuthPrefs represents default authentication preferences.
// Passwords are never stored; they are prompted or passed per invocation.
type AuthPrefs struct {
	Username string `yaml:"username"`
}

// Default preference values.
const (
	DefaultDiscoverTimeout = 5
	DefaultRequestTimeout  = 10
	DefaultUsername        = "admin"
)

func defaultPreferences() *Preferences {
	return &Preferences{
		AutoDiscover:    true,
		DiscoverTimeout: DefaultDiscoverTimeout,
		RequestTimeout:  DefaultRequestTimeout,
		DefaultAuth: &AuthPrefs{
			Username: DefaultUsername,
		},
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// GetDevice retrieves device metadata by serial number.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(serial string) *Device {
	return r.Devices[serial]
}

// EnsureDevice returns the entry for serial, creating an empty one if needed.
func (r *Registry) EnsureDevice(serial string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[serial]; exists {
		return device
	}

	device := &Device{}
	r.Devices[serial] = device
	return device
}

// UpdateDeviceLastSeen records where and when a reader was last reached.
func (r *Registry) UpdateDeviceLastSeen(serial, url, product string) {
	device := r.EnsureDevice(serial)
	device.LastSeen = time.Now()
	device.LastURL = url
	if product != "" {
		device.Product = product
	}
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(serial, nickname string) {
	device := r.EnsureDevice(serial)
	device.Nickname = nickname
}

// RemoveDevice forgets a reader. It reports whether an entry existed.
func (r *Registry) RemoveDevice(serial string) bool {
	if _, ok := r.Devices[serial]; !ok {
		return false
	}
	delete(r.Devices, serial)
	return true
}

// Resolve finds a device by serial number or by case-insensitive nickname.
func (r *Registry) Resolve(name string) (string, *Device) {
	if d, ok := r.Devices[name]; ok {
		return name, d
	}
	for serial, d := range r.Devices {
		if d.Nickname != "" && strings.EqualFold(d.Nickname, name) {
			return serial, d
		}
	}
	return "", nil
}

// Serials returns the known serial numbers in sorted order.
func (r *Registry) Serials() []string {
	serials := make([]string, 0, len(r.Devices))
	for serial := range r.Devices {
		serials = append(serials, serial)
	}
	sort.Strings(serials)
	return serials
}

// DiscoverDuration returns the mDNS browse duration.
func (p *Preferences) DiscoverDuration() time.Duration {
	if p == nil || p.DiscoverTimeout <= 0 {
		return DefaultDiscoverTimeout * time.Second
	}
	return time.Duration(p.DiscoverTimeout) * time.Second
}

// RequestDuration returns the REST request timeout.
func (p *Preferences) RequestDuration() time.Duration {
	if p == nil || p.RequestTimeout <= 0 {
		return DefaultRequestTimeout * time.Second
	}
	return time.Duration(p.RequestTimeout) * time.Second
}

// Username returns the default user name for configuration writes.
func (p *Preferences) Username() string {
	if p == nil || p.DefaultAuth == nil {
		return ""
	}
	return p.DefaultAuth.Username
}

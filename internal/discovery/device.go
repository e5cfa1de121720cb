package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device represents a modbusreader service found on the network
type Device struct {
	// Instance is the mDNS instance name (e.g., "modbusreader-315260240")
	Instance string

	// Serial is the reader serial number from the TXT record (may be empty)
	Serial string

	// Hostname is the mDNS hostname (e.g., "gateway.local.")
	Hostname string

	// IP is the IPv4 address, or IPv6 when no IPv4 address was announced
	IP string

	// Port is the HTTP port of the configuration service
	Port int

	// Metadata contains the mDNS TXT record data
	// Common fields: "serial=315260240", "product=Ha-VIS RF-R350", "path=/rest/app/modbusreader"
	Metadata map[string]string

	// DiscoveredAt is when the service was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	name := d.Serial
	if name == "" {
		name = d.Instance
	}
	return fmt.Sprintf("Modbus reader %s (%s) at %s:%d", name, d.Hostname, d.IP, d.Port)
}

// BaseURL returns the HTTP base URL for the service
func (d *Device) BaseURL() string {
	return "http://" + net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/modbusreader/internal/config"
	"github.com/muurk/modbusreader/internal/console"
	"github.com/muurk/modbusreader/internal/deviceconfig"
	"github.com/muurk/modbusreader/internal/discovery"
	"github.com/muurk/modbusreader/internal/logging"
)

// PasswordEnvVar supplies --password when the flag is empty.
const PasswordEnvVar = "MODBUSREADER_PASSWORD"

// target is the configuration service a command talks to.
type target struct {
	Name   string
	Serial string
	URL    string
}

// loadRegistry returns the device registry, or an empty one when it cannot
// be read.
func loadRegistry() *config.Registry {
	reg, err := config.LoadRegistry()
	if err != nil {
		logging.Warn("Failed to load device registry", zap.Error(err))
		return config.NewRegistry()
	}
	return reg
}

// errNoAddress marks a registry reader whose service URL was never recorded.
var errNoAddress = errors.New("no known address")

// finder locates services over mDNS. *discovery.Scanner satisfies it.
type finder interface {
	ScanForDevices(ctx context.Context) ([]*discovery.Device, error)
	WaitForDevice(ctx context.Context, serial string) (*discovery.Device, error)
}

// resolveDevice maps --device to a service. A registry serial or nickname
// resolves to its last known URL; anything else is taken as an address.
// A known reader without a URL yields its serial and errNoAddress.
func resolveDevice(reg *config.Registry, name string) (target, error) {
	if serial, d := reg.Resolve(name); d != nil {
		label := d.Nickname
		if label == "" {
			label = serial
		}
		if d.LastURL == "" {
			return target{Name: label, Serial: serial}, fmt.Errorf("reader %q: %w", name, errNoAddress)
		}
		return target{Name: label, Serial: serial, URL: d.LastURL}, nil
	}
	u, err := console.NormalizeURL(name)
	if err != nil {
		return target{}, err
	}
	return target{Name: u, URL: u}, nil
}

// resolveTarget picks the service from --device, or discovers exactly one.
// A known reader without a recorded URL is looked up by serial over mDNS.
func resolveTarget(ctx context.Context, reg *config.Registry, out io.Writer, f finder) (target, error) {
	if deviceFlag != "" {
		t, err := resolveDevice(reg, deviceFlag)
		if !errors.Is(err, errNoAddress) {
			return t, err
		}
		_, _ = fmt.Fprintf(out, "Waiting for reader %s to announce itself...\n", t.Serial)
		d, err := f.WaitForDevice(ctx, t.Serial)
		if err != nil {
			return target{}, fmt.Errorf("reader %s not found: %w", t.Serial, err)
		}
		t.URL = d.BaseURL()
		return t, nil
	}

	_, _ = fmt.Fprintln(out, "No device specified, attempting auto-discovery...")
	devices, err := f.ScanForDevices(ctx)
	if err != nil {
		return target{}, fmt.Errorf("discovery failed: %w", err)
	}

	switch len(devices) {
	case 0:
		return target{}, fmt.Errorf("no configuration services found. Use --device to specify one")
	case 1:
		d := devices[0]
		_, _ = fmt.Fprintf(out, "Found %s\n\n", d)
		return target{Name: d.String(), Serial: d.Serial, URL: d.BaseURL()}, nil
	default:
		_, _ = fmt.Fprintf(out, "Found %d services:\n", len(devices))
		for i, d := range devices {
			_, _ = fmt.Fprintf(out, "%d. %s (%s)\n", i+1, d.Serial, d.BaseURL())
		}
		return target{}, fmt.Errorf("multiple services found. Use --device to specify which one")
	}
}

func newScanner(reg *config.Registry) *discovery.Scanner {
	s := discovery.NewScanner()
	s.Timeout = reg.Preferences.DiscoverDuration()
	return s
}

// credentials returns the username and password for writes. No password
// means no auth header.
func credentials(reg *config.Registry) (string, string) {
	pass := password
	if pass == "" {
		pass = os.Getenv(PasswordEnvVar)
	}
	if pass == "" {
		return "", ""
	}
	user := username
	if user == "" {
		user = reg.Preferences.Username()
	}
	return user, pass
}

func newClient(reg *config.Registry, url string) *deviceconfig.Client {
	c := deviceconfig.NewClientWithURL(url)
	t := timeout
	if t <= 0 {
		t = reg.Preferences.RequestDuration()
	}
	c.SetTimeout(t)
	if user, pass := credentials(reg); pass != "" {
		c.SetAuth(user, pass)
	}
	return c
}

// connect resolves the target and builds its client.
func connect(ctx context.Context, reg *config.Registry, out io.Writer) (target, *deviceconfig.Client, error) {
	t, err := resolveTarget(ctx, reg, out, newScanner(reg))
	if err != nil {
		return target{}, nil, err
	}
	logging.Debug("Resolved configuration service", zap.String("name", t.Name), zap.String("url", t.URL))
	return t, newClient(reg, t.URL), nil
}

// remember records the service under the reader's serial number.
func remember(reg *config.Registry, t target, info *deviceconfig.DeviceInfo) {
	if info == nil || strings.TrimSpace(info.SerialNumber) == "" {
		return
	}
	reg.UpdateDeviceLastSeen(info.SerialNumber, t.URL, info.ProductCode)
	if err := reg.Save(); err != nil {
		logging.Warn("Failed to save device registry", zap.Error(err))
	}
}

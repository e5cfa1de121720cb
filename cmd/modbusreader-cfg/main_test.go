package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/modbusreader/internal/config"
	"github.com/muurk/modbusreader/internal/deviceconfig"
	"github.com/muurk/modbusreader/internal/discovery"
	"github.com/muurk/modbusreader/internal/runtimeconfig"
	"github.com/muurk/modbusreader/internal/server"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memDevice struct {
	mu     sync.Mutex
	rc     *runtimeconfig.RuntimeConfiguration
	writes int
}

func (d *memDevice) DeviceInfo(ctx context.Context) (*deviceconfig.DeviceInfo, error) {
	return &deviceconfig.DeviceInfo{VendorName: "HARTING", ProductCode: "Ha-VIS RF-R350", SerialNumber: "315260240"}, nil
}

func (d *memDevice) RuntimeConfig(ctx context.Context) (*runtimeconfig.RuntimeConfiguration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rc.Clone(), nil
}

func (d *memDevice) WriteRuntimeConfig(ctx context.Context, rc *runtimeconfig.RuntimeConfiguration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	d.rc = rc.Clone()
	return nil
}

func (d *memDevice) RuntimeRegisters(ctx context.Context) ([]deviceconfig.RuntimeRegisterItem, error) {
	return nil, nil
}

func (d *memDevice) Export(ctx context.Context) (string, error) {
	return "", nil
}

func (d *memDevice) state() (*runtimeconfig.RuntimeConfiguration, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rc.Clone(), d.writes
}

func newTestService(t *testing.T) (*memDevice, *deviceconfig.Client, target) {
	t.Helper()
	dev := &memDevice{rc: runtimeconfig.New(&runtimeconfig.Shape{
		TagsInField:              runtimeconfig.Uint16(2),
		MemorySelector:           runtimeconfig.Uint16(uint16(runtimeconfig.IncludeCRC)),
		EPCLength:                runtimeconfig.Uint16(6),
		TIDLength:                runtimeconfig.Uint16(0),
		UserLength:               runtimeconfig.Uint16(0),
		SelectionMaskCount:       runtimeconfig.Uint16(0),
		SelectionMaskMaxLength:   runtimeconfig.Uint16(0),
		CustomOperationMaxLength: runtimeconfig.Uint16(0),
	})}
	ts := httptest.NewServer(server.New(&server.Config{}, dev).Handler())
	t.Cleanup(ts.Close)
	return dev, deviceconfig.NewClientWithURL(ts.URL), target{Name: "test reader", URL: ts.URL}
}

func TestApplySetWrites(t *testing.T) {
	dev, client, tgt := newTestService(t)
	var out bytes.Buffer

	err := applySet(context.Background(), client, tgt, setRequest{
		Assignments: []string{"includePC=true", "epcLength=8"},
		Verify:      true,
		In:          strings.NewReader(""),
		Out:         &out,
	})
	require.NoError(t, err)

	rc, writes := dev.state()
	assert.Equal(t, 1, writes)
	assert.True(t, rc.Flag(runtimeconfig.IncludePC))
	assert.True(t, rc.Flag(runtimeconfig.IncludeCRC))
	assert.Equal(t, uint16(8), rc.LengthOrZero(runtimeconfig.EPCLength))

	assert.Contains(t, out.String(), "Configuration Differences")
	assert.Contains(t, out.String(), "Runtime Configuration Update complete")
}

func TestApplySetNothingToWrite(t *testing.T) {
	dev, client, tgt := newTestService(t)
	var out bytes.Buffer

	err := applySet(context.Background(), client, tgt, setRequest{
		Assignments: []string{"includeCRC=true"},
		In:          strings.NewReader(""),
		Out:         &out,
	})
	require.NoError(t, err)

	_, writes := dev.state()
	assert.Equal(t, 0, writes)
	assert.Contains(t, out.String(), "nothing to write")
}

func TestApplySetDeclined(t *testing.T) {
	dev, client, tgt := newTestService(t)
	var out bytes.Buffer

	err := applySet(context.Background(), client, tgt, setRequest{
		Assignments: []string{"includeCRC=false"},
		In:          strings.NewReader("n\n"),
		Out:         &out,
	})
	require.NoError(t, err)

	_, writes := dev.state()
	assert.Equal(t, 0, writes)
	assert.Contains(t, out.String(), "CRC will no longer be included")
	assert.Contains(t, out.String(), "Operation cancelled")
}

func TestApplySetYesSkipsConfirmation(t *testing.T) {
	dev, client, tgt := newTestService(t)
	var out bytes.Buffer

	err := applySet(context.Background(), client, tgt, setRequest{
		Assignments: []string{"includeCRC=false"},
		Yes:         true,
		In:          strings.NewReader(""),
		Out:         &out,
	})
	require.NoError(t, err)

	rc, writes := dev.state()
	assert.Equal(t, 1, writes)
	assert.False(t, rc.Flag(runtimeconfig.IncludeCRC))
}

func TestApplySetSafe(t *testing.T) {
	dev, client, tgt := newTestService(t)
	var out bytes.Buffer

	err := applySet(context.Background(), client, tgt, setRequest{
		Assignments: []string{"tagsInField=4"},
		Verify:      true,
		Safe:        true,
		In:          strings.NewReader(""),
		Out:         &out,
	})
	require.NoError(t, err)

	rc, _ := dev.state()
	assert.Equal(t, uint16(4), rc.LengthOrZero(runtimeconfig.TagsInField))
}

func TestApplySetInvalidAssignment(t *testing.T) {
	dev, client, tgt := newTestService(t)

	for _, a := range []string{"includeCRC", "includeCRC=maybe", "epcLength=70000", "bogus=1"} {
		err := applySet(context.Background(), client, tgt, setRequest{
			Assignments: []string{a},
			In:          strings.NewReader(""),
			Out:         &bytes.Buffer{},
		})
		assert.Error(t, err, a)
	}
	_, writes := dev.state()
	assert.Equal(t, 0, writes)
}

func TestDestructiveWarnings(t *testing.T) {
	current := &runtimeconfig.Shape{
		TagsInField:    runtimeconfig.Uint16(4),
		MemorySelector: runtimeconfig.Uint16(uint16(runtimeconfig.IncludeKillPwd)),
	}
	update := &runtimeconfig.Shape{
		TagsInField:    runtimeconfig.Uint16(2),
		MemorySelector: runtimeconfig.Uint16(0),
	}

	got := destructiveWarnings(current, update)
	assert.Len(t, got, 2)
	for _, w := range got {
		assert.NotContains(t, w, "⚠️")
	}
	assert.Empty(t, destructiveWarnings(current, current))
}

func TestResolveDevice(t *testing.T) {
	reg := config.NewRegistry()
	reg.UpdateDeviceLastSeen("315260240", "http://10.0.0.9:8080", "Ha-VIS RF-R350")
	reg.SetDeviceNickname("315260240", "dock-door")
	reg.SetDeviceNickname("999", "unseen")

	tgt, err := resolveDevice(reg, "Dock-Door")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.9:8080", tgt.URL)
	assert.Equal(t, "315260240", tgt.Serial)

	tgt, err = resolveDevice(reg, "315260240")
	require.NoError(t, err)
	assert.Equal(t, "dock-door", tgt.Name)

	tgt, err = resolveDevice(reg, "unseen")
	assert.ErrorIs(t, err, errNoAddress)
	assert.Equal(t, "999", tgt.Serial)

	tgt, err = resolveDevice(reg, "10.0.0.20")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.20:8080", tgt.URL)
}

type fakeFinder struct {
	devices []*discovery.Device
	err     error
	waited  string
}

func (f *fakeFinder) ScanForDevices(context.Context) ([]*discovery.Device, error) {
	return f.devices, f.err
}

func (f *fakeFinder) WaitForDevice(ctx context.Context, serial string) (*discovery.Device, error) {
	f.waited = serial
	for _, d := range f.devices {
		if d.Serial == serial {
			return d, nil
		}
	}
	return nil, context.DeadlineExceeded
}

func TestResolveTargetDiscovery(t *testing.T) {
	reg := config.NewRegistry()
	one := &discovery.Device{Serial: "1", IP: "10.0.0.1", Port: 8080}
	two := &discovery.Device{Serial: "2", IP: "10.0.0.2", Port: 8080}

	tgt, err := resolveTarget(context.Background(), reg, &bytes.Buffer{}, &fakeFinder{devices: []*discovery.Device{one}})
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:8080", tgt.URL)

	_, err = resolveTarget(context.Background(), reg, &bytes.Buffer{}, &fakeFinder{})
	assert.ErrorContains(t, err, "no configuration services found")

	var out bytes.Buffer
	_, err = resolveTarget(context.Background(), reg, &out, &fakeFinder{devices: []*discovery.Device{one, two}})
	assert.ErrorContains(t, err, "multiple services found")
	assert.Contains(t, out.String(), "http://10.0.0.2:8080")

	_, err = resolveTarget(context.Background(), reg, &bytes.Buffer{}, &fakeFinder{err: errors.New("no multicast")})
	assert.ErrorContains(t, err, "discovery failed")
}

func TestResolveTargetWaitsForKnownSerial(t *testing.T) {
	reg := config.NewRegistry()
	reg.SetDeviceNickname("2", "line-2")
	deviceFlag = "line-2"
	t.Cleanup(func() { deviceFlag = "" })

	f := &fakeFinder{devices: []*discovery.Device{{Serial: "2", IP: "10.0.0.2", Port: 8080}}}
	tgt, err := resolveTarget(context.Background(), reg, &bytes.Buffer{}, f)
	require.NoError(t, err)
	assert.Equal(t, "2", f.waited)
	assert.Equal(t, "http://10.0.0.2:8080", tgt.URL)
	assert.Equal(t, "line-2", tgt.Name)

	_, err = resolveTarget(context.Background(), reg, &bytes.Buffer{}, &fakeFinder{})
	assert.ErrorContains(t, err, "reader 2 not found")
}

func TestSetNickname(t *testing.T) {
	reg := config.NewRegistry()
	reg.SetDeviceNickname("1", "dock-door")

	serial, err := setNickname(reg, "dock-door", "gate")
	require.NoError(t, err)
	assert.Equal(t, "1", serial)
	assert.Equal(t, "gate", reg.GetDevice("1").Nickname)

	_, err = setNickname(reg, "2", "GATE")
	assert.Error(t, err)

	serial, err = setNickname(reg, "2", "line-2")
	require.NoError(t, err)
	assert.Equal(t, "2", serial)
}

func TestListDevices(t *testing.T) {
	var out bytes.Buffer
	listDevices(&out, config.NewRegistry())
	assert.Contains(t, out.String(), "No known readers")

	reg := config.NewRegistry()
	reg.UpdateDeviceLastSeen("315260240", "http://10.0.0.9:8080", "Ha-VIS RF-R350")
	out.Reset()
	listDevices(&out, reg)
	assert.Contains(t, out.String(), "SERIAL")
	assert.Contains(t, out.String(), "315260240")
	assert.Contains(t, out.String(), "http://10.0.0.9:8080")
}

func TestWriteExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "registers.tsv")
	require.NoError(t, writeExport(path, "a\tb\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\tb\n", string(data))
}

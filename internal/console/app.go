package console

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/modbusreader/internal/config"
	"github.com/muurk/modbusreader/internal/deviceconfig"
	"github.com/muurk/modbusreader/internal/discovery"
	"github.com/muurk/modbusreader/internal/logging"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenReader    Screen = "reader"
)

// Options configure a console run.
type Options struct {
	// URL opens that service directly and skips discovery.
	URL  string
	Name string

	Username string
	Password string
	Timeout  time.Duration

	ExportDir string

	// Registry supplies known readers and records the ones opened.
	// RegistryPath is where it is saved; empty means the default location.
	Registry     *config.Registry
	RegistryPath string

	// Scan and Connect replace mDNS browsing and the HTTP client.
	Scan    ScanFunc
	Connect func(url string) API
}

func (o *Options) setDefaults() {
	if o.Scan == nil {
		timeout := discovery.DefaultScanTimeout
		if o.Registry != nil {
			timeout = o.Registry.Preferences.DiscoverDuration()
		}
		o.Scan = func(ctx context.Context) ([]*discovery.Device, error) {
			s := discovery.NewScanner()
			s.Timeout = timeout
			return s.ScanForDevices(ctx)
		}
	}
	if o.Connect == nil {
		o.Connect = func(url string) API {
			c := deviceconfig.NewClientWithURL(url)
			if o.Timeout > 0 {
				c.SetTimeout(o.Timeout)
			}
			if o.Username != "" {
				c.SetAuth(o.Username, o.Password)
			}
			return c
		}
	}
}

// knownTargets lists registry readers that have a last known URL.
func knownTargets(r *config.Registry) []Target {
	if r == nil {
		return nil
	}
	var out []Target
	for _, serial := range r.Serials() {
		d := r.GetDevice(serial)
		name := d.Nickname
		if name == "" {
			name = serial
		}
		out = append(out, Target{Name: name, Serial: serial, URL: d.LastURL})
	}
	return out
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	opts Options

	CurrentScreen Screen
	Discovery     DiscoveryModel
	Reader        ReaderModel
	Target        *Target

	// direct is set when the console was opened on a URL; leaving the
	// reader then quits instead of returning to discovery.
	direct   bool
	recorded bool

	Width  int
	Height int
}

// NewAppModel creates the console. It opens opts.URL directly when set.
func NewAppModel(opts Options) AppModel {
	opts.setDefaults()
	m := AppModel{opts: opts}
	if opts.URL != "" {
		name := opts.Name
		if name == "" {
			name = opts.URL
		}
		m.direct = true
		m.Target = &Target{Name: name, URL: opts.URL}
		m.CurrentScreen = ScreenReader
		m.Reader = m.newReader(*m.Target)
		return m
	}
	m.CurrentScreen = ScreenDiscovery
	m.Discovery = NewDiscoveryModel(opts.Scan, knownTargets(opts.Registry))
	return m
}

func (m AppModel) newReader(t Target) ReaderModel {
	r := NewReaderModel(m.opts.Connect(t.URL), ReaderOptions{Name: t.Name, ExportDir: m.opts.ExportDir})
	r.Width, r.Height = m.Width, m.Height
	r.Help.Width = m.Width
	return r
}

// Init initializes the current screen
func (m AppModel) Init() tea.Cmd {
	switch m.CurrentScreen {
	case ScreenReader:
		return m.Reader.Init()
	default:
		return m.Discovery.Init()
	}
}

// Close releases the reader screen, if one is open.
func (m AppModel) Close() {
	if m.CurrentScreen == ScreenReader {
		m.Reader.Close()
	}
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	switch m.CurrentScreen {
	case ScreenDiscovery:
		updated, cmd := m.Discovery.Update(msg)
		m.Discovery = updated.(DiscoveryModel)
		if m.Discovery.QuitRequested() {
			return m, tea.Quit
		}
		if m.Discovery.Selected != nil {
			t := *m.Discovery.Selected
			return m.openReader(t)
		}
		return m, cmd

	case ScreenReader:
		updated, cmd := m.Reader.Update(msg)
		m.Reader = updated.(ReaderModel)
		m.record()
		if m.Reader.IsBackRequested() {
			return m.goBack()
		}
		return m, cmd
	}
	return m, nil
}

func (m AppModel) openReader(t Target) (tea.Model, tea.Cmd) {
	logging.Info("Opening reader", zap.String("name", t.Name), zap.String("url", t.URL))
	m.Target = &t
	m.recorded = false
	m.CurrentScreen = ScreenReader
	m.Reader = m.newReader(t)
	return m, m.Reader.Init()
}

func (m AppModel) goBack() (tea.Model, tea.Cmd) {
	m.Reader.Close()
	if m.direct {
		return m, tea.Quit
	}
	m.CurrentScreen = ScreenDiscovery
	m.Target = nil
	m.Discovery = NewDiscoveryModel(m.opts.Scan, knownTargets(m.opts.Registry))
	m.Discovery.Width, m.Discovery.Height = m.Width, m.Height
	return m, m.Discovery.Init()
}

// record stores the opened reader in the registry once its identity is known.
func (m *AppModel) record() {
	if m.recorded || m.opts.Registry == nil || m.Reader.Info == nil || m.Target == nil {
		return
	}
	m.recorded = true
	info := m.Reader.Info
	if info.SerialNumber == "" {
		return
	}
	m.opts.Registry.UpdateDeviceLastSeen(info.SerialNumber, m.Target.URL, info.ProductCode)

	var err error
	if m.opts.RegistryPath != "" {
		err = m.opts.Registry.SaveFile(m.opts.RegistryPath)
	} else {
		err = m.opts.Registry.Save()
	}
	if err != nil {
		logging.Warn("Failed to save device registry", zap.Error(err))
	}
}

// View renders the current screen
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenReader:
		return m.Reader.View()
	case ScreenDiscovery:
		return m.Discovery.View()
	default:
		return "Unknown screen"
	}
}

// Run starts the console and blocks until the operator quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	model := NewAppModel(opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if app, ok := final.(AppModel); ok {
		app.Close()
	} else {
		model.Close()
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("console failed: %w", err)
	}
	return nil
}

package console

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/modbusreader/internal/discovery"
	"github.com/muurk/modbusreader/internal/ui"
)

// Target is a configuration service the console can open.
type Target struct {
	Name   string // nickname, serial or host
	Serial string
	URL    string
	Known  bool // from the device registry rather than this scan
}

// ScanFunc browses the network for configuration services.
type ScanFunc func(ctx context.Context) ([]*discovery.Device, error)

type scanStartMsg struct{}

type scanCompleteMsg struct {
	devices []*discovery.Device
	err     error
}

// discoveryKeyMap defines key bindings for the discovery screen
type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Enter}, {k.Rescan, k.Manual, k.Quit}}
}

// manualKeyMap defines key bindings for manual URL entry
type manualKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k manualKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (k manualKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Confirm, k.Cancel}}
}

// targetItem wraps a Target for use with bubbles/list
type targetItem struct {
	target Target
}

func (t targetItem) FilterValue() string {
	return t.target.Name + " " + t.target.Serial + " " + t.target.URL
}

func (t targetItem) Title() string {
	if t.target.Known {
		return t.target.Name + " (known)"
	}
	return t.target.Name
}

func (t targetItem) Description() string {
	return t.target.URL
}

// DiscoveryModel lets the operator pick a configuration service.
type DiscoveryModel struct {
	scan  ScanFunc
	known []Target

	Scanning bool
	List     list.Model
	Err      error
	Selected *Target

	ManualMode bool
	URLInput   textinput.Model

	Width      int
	Height     int
	Spinner    spinner.Model
	ScanStart  time.Time
	Help       help.Model
	Keys       discoveryKeyMap
	ManualKeys manualKeyMap

	quit bool
}

// NewDiscoveryModel creates the discovery screen. known entries are listed
// alongside scan results.
func NewDiscoveryModel(scan ScanFunc, known []Target) DiscoveryModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	input := textinput.New()
	input.Placeholder = "http://192.168.1.50:8080"
	input.CharLimit = 256
	input.Width = 40

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Configuration services"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = TitleStyle

	m := DiscoveryModel{
		scan:     scan,
		known:    known,
		List:     l,
		URLInput: input,
		Spinner:  s,
		Help:     help.New(),
		Keys: discoveryKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
			Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
			Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
			Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "enter URL")),
			Quit:   key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
		},
		ManualKeys: manualKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		},
	}
	m.setItems(nil)
	return m
}

// Init starts a scan immediately.
func (m DiscoveryModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		m.scanCmd(),
		m.Spinner.Tick,
	)
}

func (m DiscoveryModel) scanCmd() tea.Cmd {
	scan := m.scan
	return func() tea.Msg {
		devices, err := scan(context.Background())
		return scanCompleteMsg{devices: devices, err: err}
	}
}

// mergeTargets lists scanned services first, then known services not seen
// in this scan. A scanned service with a known serial takes its nickname.
func mergeTargets(devices []*discovery.Device, known []Target) []Target {
	bySerial := make(map[string]Target, len(known))
	for _, k := range known {
		if k.Serial != "" {
			bySerial[k.Serial] = k
		}
	}

	seen := make(map[string]bool)
	var out []Target
	for _, d := range devices {
		t := Target{Name: d.String(), Serial: d.Serial, URL: d.BaseURL()}
		if k, ok := bySerial[d.Serial]; ok && d.Serial != "" {
			t.Name = k.Name
			seen[d.Serial] = true
		}
		out = append(out, t)
	}
	for _, k := range known {
		if k.Serial != "" && seen[k.Serial] {
			continue
		}
		if k.URL == "" {
			continue
		}
		k.Known = true
		out = append(out, k)
	}
	return out
}

func (m *DiscoveryModel) setItems(devices []*discovery.Device) {
	targets := mergeTargets(devices, m.known)
	items := make([]list.Item, len(targets))
	for i, t := range targets {
		items[i] = targetItem{target: t}
	}
	m.List.SetItems(items)
}

// Update handles messages and updates the model
func (m DiscoveryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		m.List.SetWidth(msg.Width - 4)
		m.List.SetHeight(msg.Height - 10)

	case scanStartMsg:
		m.Scanning = true
		m.ScanStart = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		m.setItems(msg.devices)

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.List.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.List, cmd = m.List.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.Keys.Quit):
		m.quit = true
		return m, nil

	case key.Matches(msg, m.Keys.Manual):
		m.ManualMode = true
		m.URLInput.SetValue("")
		return m, m.URLInput.Focus()

	case key.Matches(msg, m.Keys.Rescan):
		if m.Scanning {
			return m, nil
		}
		return m, tea.Batch(func() tea.Msg { return scanStartMsg{} }, m.scanCmd(), m.Spinner.Tick)

	case key.Matches(msg, m.Keys.Enter):
		if m.Scanning {
			return m, nil
		}
		if item, ok := m.List.SelectedItem().(targetItem); ok {
			t := item.target
			m.Selected = &t
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.List, cmd = m.List.Update(msg)
	return m, cmd
}

func (m DiscoveryModel) updateManualMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.ManualKeys.Cancel):
		m.ManualMode = false
		m.URLInput.Blur()
		m.Err = nil
		return m, nil

	case key.Matches(msg, m.ManualKeys.Confirm):
		u, err := NormalizeURL(m.URLInput.Value())
		if err != nil {
			m.Err = err
			return m, nil
		}
		m.Err = nil
		m.ManualMode = false
		m.Selected = &Target{Name: u, URL: u}
		return m, nil
	}

	var cmd tea.Cmd
	m.URLInput, cmd = m.URLInput.Update(msg)
	return m, cmd
}

// NormalizeURL accepts "host", "host:port" or a full URL and returns the
// service base URL. A bare host gets the default service port.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("service address required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid service address %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Port() == "" && u.Scheme == "http" {
		u.Host = fmt.Sprintf("%s:%d", u.Hostname(), discovery.DefaultPort)
		if strings.Contains(u.Hostname(), ":") {
			u.Host = fmt.Sprintf("[%s]:%d", u.Hostname(), discovery.DefaultPort)
		}
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.Help.View(m.ManualKeys)
	case m.Scanning:
		content = m.renderScanning()
		helpText = m.Help.View(m.Keys)
	default:
		content = m.renderResults()
		helpText = m.Help.View(m.Keys)
	}
	return renderContainer(content, "", helpText, m.Width, m.Height)
}

func (m DiscoveryModel) renderScanning() string {
	width := m.Width
	if width == 0 {
		width = defaultWidth
	}
	elapsed := time.Since(m.ScanStart).Round(time.Second)
	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(m.Spinner.View()+" SEARCHING FOR READERS"),
		"",
		SubtitleStyle.Render("Browsing for "+discovery.ServiceType+" services..."),
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		"",
	)
	return lipgloss.Place(width-4, 0, lipgloss.Center, lipgloss.Top, content)
}

func (m DiscoveryModel) renderResults() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString("  " + ui.StatusErrorStyle.Render("Scan failed: "+m.Err.Error()) + "\n\n")
	}

	if len(m.List.Items()) == 0 {
		b.WriteString("  " + ui.WarningTitleStyle.Render(ui.WarningMarker+" No configuration services found") + "\n\n")
		b.WriteString("  Troubleshooting:\n")
		b.WriteString("    • Ensure modbusreader-server is running with advertising enabled\n")
		b.WriteString("    • mDNS needs UDP port 5353 and the same network segment\n")
		b.WriteString("    • Press m to enter the service URL directly\n")
		return b.String()
	}

	b.WriteString(m.List.View())
	return b.String()
}

func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("  Enter configuration service address"))
	b.WriteString("\n\n  URL: ")
	b.WriteString(m.URLInput.View())
	b.WriteString("\n\n")
	if m.Err != nil {
		b.WriteString("  " + ui.StatusErrorStyle.Render(m.Err.Error()) + "\n")
	}
	return b.String()
}

// QuitRequested reports whether the operator asked to leave the console.
func (m DiscoveryModel) QuitRequested() bool {
	return m.quit
}

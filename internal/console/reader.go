package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/modbusreader/internal/deviceconfig"
	"github.com/muurk/modbusreader/internal/editor"
	"github.com/muurk/modbusreader/internal/notify"
	"github.com/muurk/modbusreader/internal/runtimeconfig"
	"github.com/muurk/modbusreader/internal/ui"
)

// Tab is one section of the reader screen.
type Tab int

const (
	TabDeviceInfo Tab = iota
	TabRuntimeConfig
	TabRuntimeRegister
)

var tabNames = []string{"Device Info", "Runtime Configuration", "Runtime Register"}

func (t Tab) String() string {
	return tabNames[t]
}

// readerKeyMap defines key bindings for the reader screen
type readerKeyMap struct {
	NextTab key.Binding
	PrevTab key.Binding
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	Inc     key.Binding
	Dec     key.Binding
	Save    key.Binding
	Reload  key.Binding
	Revert  key.Binding
	Export  key.Binding
	Help    key.Binding
	Back    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k readerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTab, k.Toggle, k.Inc, k.Save, k.Reload, k.Revert, k.Back, k.Help}
}

// FullHelp returns keybindings for the expanded help view
func (k readerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextTab, k.PrevTab, k.Up, k.Down},
		{k.Toggle, k.Inc, k.Dec},
		{k.Save, k.Reload, k.Revert, k.Export},
		{k.Help, k.Back},
	}
}

func newReaderKeyMap() readerKeyMap {
	return readerKeyMap{
		NextTab: key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next section")),
		PrevTab: key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab", "previous section")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
		Toggle:  key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "toggle / apply")),
		Inc:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-/0-9", "edit length")),
		Dec:     key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "decrement")),
		Save:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		Reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Revert:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo edits")),
		Export:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export registers")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Back:    key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "back")),
	}
}

// ReaderOptions configures the reader screen.
type ReaderOptions struct {
	Name      string // shown above the tabs
	ExportDir string // where "e" writes the register export
}

// ReaderModel shows one reader's device info, runtime configuration and
// runtime register list, and edits the configuration through an editor
// session.
type ReaderModel struct {
	api     API
	session *editor.Session
	notes   noteQueue
	ctx     context.Context
	cancel  context.CancelFunc
	opts    ReaderOptions
	now     func() time.Time

	Tab       Tab
	Cursor    int
	Entry     string // digits typed for the selected length
	Info      *deviceconfig.DeviceInfo
	Registers []deviceconfig.RuntimeRegisterItem
	Status    *notify.Notification
	Pending   int

	Width   int
	Height  int
	Keys    readerKeyMap
	Help    help.Model
	Spinner spinner.Model

	back bool
}

// NewReaderModel creates the reader screen for api.
func NewReaderModel(api API, opts ReaderOptions) ReaderModel {
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	ctx, cancel := context.WithCancel(context.Background())
	notes := newNoteQueue()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return ReaderModel{
		api:     api,
		session: editor.NewSession(api, notify.Multi(notes, notify.LogNotifier{})),
		notes:   notes,
		ctx:     ctx,
		cancel:  cancel,
		opts:    opts,
		now:     time.Now,
		Tab:     TabDeviceInfo,
		Pending: initialRequests,
		Keys:    newReaderKeyMap(),
		Help:    help.New(),
		Spinner: s,
	}
}

// Session returns the editing session behind the screen.
func (m ReaderModel) Session() *editor.Session {
	return m.session
}

// initialRequests is the number of loads Init issues.
const initialRequests = 3

// Init loads every section and starts listening for notifications.
func (m ReaderModel) Init() tea.Cmd {
	return tea.Batch(
		fetchInfo(m.ctx, m.api),
		loadConfig(m.ctx, m.session),
		fetchRegisters(m.ctx, m.api),
		waitForNote(m.notes),
		watchEvents(m.ctx, m.api, m.notes),
		m.Spinner.Tick,
	)
}

// Close discards in-flight results and stops the event stream.
func (m ReaderModel) Close() {
	m.session.Close()
	m.cancel()
}

// IsBackRequested reports whether the operator asked to leave the screen.
func (m ReaderModel) IsBackRequested() bool {
	return m.back
}

func rowCount() int {
	return len(runtimeconfig.Lengths()) + len(runtimeconfig.Flags())
}

// rowAt maps a cursor position to a length field or a flag.
func rowAt(i int) (runtimeconfig.Length, runtimeconfig.Flag, bool) {
	lengths := runtimeconfig.Lengths()
	if i < len(lengths) {
		return lengths[i], 0, true
	}
	return 0, runtimeconfig.Flags()[i-len(lengths)], false
}

func (m *ReaderModel) setStatus(kind notify.Kind, message string) {
	n := notify.New(kind, message)
	m.Status = &n
}

// sessionError reports errors the session did not already notify.
func (m *ReaderModel) sessionError(err error) {
	switch {
	case err == nil, errors.Is(err, editor.ErrClosed):
	case errors.Is(err, editor.ErrNotLoaded),
		errors.Is(err, editor.ErrLoadInProgress),
		errors.Is(err, editor.ErrSaveInProgress):
		m.setStatus(notify.KindError, err.Error())
	}
}

func (m *ReaderModel) begin(requests ...tea.Cmd) tea.Cmd {
	idle := m.Pending == 0
	m.Pending += len(requests)
	if idle {
		requests = append(requests, m.Spinner.Tick)
	}
	return tea.Batch(requests...)
}

func (m *ReaderModel) done() {
	if m.Pending > 0 {
		m.Pending--
	}
}

func (m *ReaderModel) reload() tea.Cmd {
	m.Entry = ""
	return m.begin(
		fetchInfo(m.ctx, m.api),
		loadConfig(m.ctx, m.session),
		fetchRegisters(m.ctx, m.api),
	)
}

// Update handles messages and updates the model
func (m ReaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width

	case tea.KeyMsg:
		return m.updateKeys(msg)

	case infoLoadedMsg:
		m.done()
		if msg.err != nil {
			m.setStatus(notify.KindError, deviceconfig.NotificationMessage(msg.err))
			break
		}
		m.Info = msg.info

	case configLoadedMsg:
		m.done()
		m.sessionError(msg.err)

	case configSavedMsg:
		m.done()
		if msg.err != nil {
			m.sessionError(msg.err)
			break
		}
		// The service is authoritative after a write.
		return m, m.begin(loadConfig(m.ctx, m.session), fetchRegisters(m.ctx, m.api))

	case registersLoadedMsg:
		m.done()
		if msg.err != nil {
			m.setStatus(notify.KindError, deviceconfig.NotificationMessage(msg.err))
			break
		}
		m.Registers = msg.items

	case exportedMsg:
		m.done()
		if msg.err != nil {
			m.setStatus(notify.KindError, "Export failed: "+deviceconfig.NotificationMessage(msg.err))
			break
		}
		m.setStatus(notify.KindInfo, "Runtime registers exported to "+msg.path)

	case noteMsg:
		n := notify.Notification(msg)
		m.Status = &n
		return m, waitForNote(m.notes)

	case watchEndedMsg:
		if msg.err != nil {
			m.setStatus(notify.KindError, "Event stream closed: "+deviceconfig.NotificationMessage(msg.err))
		}

	case spinner.TickMsg:
		if m.Pending == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m ReaderModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Back):
		if m.Entry != "" && msg.String() == "esc" {
			m.Entry = ""
			return m, nil
		}
		m.back = true
		return m, nil

	case key.Matches(msg, m.Keys.NextTab):
		m.Tab = (m.Tab + 1) % Tab(len(tabNames))
		m.Entry = ""
		return m, nil

	case key.Matches(msg, m.Keys.PrevTab):
		m.Tab = (m.Tab + Tab(len(tabNames)) - 1) % Tab(len(tabNames))
		m.Entry = ""
		return m, nil

	case key.Matches(msg, m.Keys.Help):
		m.Help.ShowAll = !m.Help.ShowAll
		return m, nil

	case key.Matches(msg, m.Keys.Save):
		m.Entry = ""
		return m, m.begin(saveConfig(m.ctx, m.session))

	case key.Matches(msg, m.Keys.Reload):
		return m, m.reload()

	case key.Matches(msg, m.Keys.Export):
		return m, m.begin(exportRegisters(m.ctx, m.api, m.opts.ExportDir, m.now()))
	}

	if m.Tab == TabRuntimeConfig {
		return m.updateConfigKeys(msg)
	}
	return m, nil
}

func (m ReaderModel) updateConfigKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	length, flag, isLength := rowAt(m.Cursor)

	switch {
	case key.Matches(msg, m.Keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
		}
		m.Entry = ""

	case key.Matches(msg, m.Keys.Down):
		if m.Cursor < rowCount()-1 {
			m.Cursor++
		}
		m.Entry = ""

	case key.Matches(msg, m.Keys.Revert):
		m.Entry = ""
		m.sessionError(m.session.Revert())

	case key.Matches(msg, m.Keys.Toggle):
		if !isLength {
			m.sessionError(m.session.ToggleFlag(flag))
			break
		}
		if m.Entry != "" {
			m.commitEntry(length)
		}

	case key.Matches(msg, m.Keys.Inc), key.Matches(msg, m.Keys.Dec):
		if !isLength {
			break
		}
		rc := m.session.Config()
		if rc == nil {
			m.sessionError(editor.ErrNotLoaded)
			break
		}
		v := rc.LengthOrZero(length)
		if key.Matches(msg, m.Keys.Inc) && v < 0xFFFF {
			v++
		} else if key.Matches(msg, m.Keys.Dec) && v > 0 {
			v--
		}
		m.Entry = ""
		m.sessionError(m.session.SetLength(length, v))

	case msg.Type == tea.KeyBackspace:
		if m.Entry != "" {
			m.Entry = m.Entry[:len(m.Entry)-1]
		}

	case msg.Type == tea.KeyRunes && len(msg.Runes) == 1 && msg.Runes[0] >= '0' && msg.Runes[0] <= '9':
		if !isLength {
			break
		}
		entry := strings.TrimLeft(m.Entry+string(msg.Runes[0]), "0")
		if entry == "" {
			entry = "0"
		}
		if v, err := strconv.ParseUint(entry, 10, 16); err != nil || v > 0xFFFF {
			m.setStatus(notify.KindError, fmt.Sprintf("%s must be between 0 and 65535", length))
			break
		}
		m.Entry = entry
	}

	return m, nil
}

func (m *ReaderModel) commitEntry(l runtimeconfig.Length) {
	v, err := strconv.ParseUint(m.Entry, 10, 16)
	m.Entry = ""
	if err != nil {
		m.setStatus(notify.KindError, fmt.Sprintf("%s must be between 0 and 65535", l))
		return
	}
	m.sessionError(m.session.SetLength(l, uint16(v)))
}

// View renders the reader screen
func (m ReaderModel) View() string {
	var b strings.Builder

	if m.opts.Name != "" {
		b.WriteString(SubtitleStyle.Render("  " + m.opts.Name))
		b.WriteString("\n")
	}
	b.WriteString(renderTabs(tabNames, int(m.Tab)))
	b.WriteString("\n\n")

	switch m.Tab {
	case TabDeviceInfo:
		b.WriteString(m.renderDeviceInfo())
	case TabRuntimeConfig:
		b.WriteString(m.renderRuntimeConfig())
	case TabRuntimeRegister:
		b.WriteString(m.renderRegisters())
	}

	return renderContainer(b.String(), m.renderStatus(), m.Help.View(m.Keys), m.Width, m.Height)
}

func (m ReaderModel) renderStatus() string {
	var parts []string
	if m.Pending > 0 {
		parts = append(parts, m.Spinner.View()+" Working...")
	}
	if m.Status != nil {
		style := ui.StatusInfoStyle
		if m.Status.Kind == notify.KindError {
			style = ui.StatusErrorStyle
		}
		parts = append(parts, style.Render(m.Status.Time.Format("15:04:05")+"  "+m.Status.Message))
	}
	return strings.Join(parts, "  ")
}

func (m ReaderModel) renderDeviceInfo() string {
	if m.Info == nil {
		return SubtitleStyle.Render("  Loading device information...")
	}
	rows := []ui.Param{
		{Key: "Vendor", Value: m.Info.VendorName},
		{Key: "Product code", Value: m.Info.ProductCode},
		{Key: "Revision", Value: m.Info.MajorMinorRevision},
		{Key: "Serial number", Value: m.Info.SerialNumber},
		{Key: "Hardware revision", Value: m.Info.HardwareRevision},
		{Key: "Base firmware", Value: m.Info.BaseFirmware},
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString("  " + LabelStyle.Render(r.Key) + r.Value + "\n")
	}
	return b.String()
}

func (m ReaderModel) renderRuntimeConfig() string {
	rc := m.session.Config()
	if rc == nil {
		return SubtitleStyle.Render("  Loading runtime configuration...")
	}

	var b strings.Builder
	for i := 0; i < rowCount(); i++ {
		cursor := "  "
		if i == m.Cursor {
			cursor = ui.SelectedRowStyle.Render("› ")
		}

		length, flag, isLength := rowAt(i)
		var line string
		if isLength {
			value := "(unset)"
			if v, ok := rc.Length(length); ok {
				value = strconv.Itoa(int(v))
			}
			if i == m.Cursor && m.Entry != "" {
				value = ui.DirtyStyle.Render(m.Entry + "_")
			}
			line = LabelStyle.Render(length.Label()) + value
		} else {
			box := "[ ]"
			if rc.Flag(flag) {
				box = "[x]"
			}
			line = box + " Include " + flag.Label()
		}
		if i == m.Cursor {
			line = ui.SelectedRowStyle.Render(line)
		}
		b.WriteString(cursor + line + "\n")

		if i == len(runtimeconfig.Lengths())-1 {
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if sel, ok := rc.Selector(); ok {
		b.WriteString("  " + LabelStyle.Render("Memory selector") +
			fmt.Sprintf("0x%04X (0b%05b)", uint16(sel), uint16(sel&runtimeconfig.FlagMask)) + "\n")
	}

	if m.session.Dirty() {
		b.WriteString("\n  " + ui.DirtyStyle.Render("● Unsaved changes (s to save, u to undo)") + "\n")
	}

	warnings, _ := deviceconfig.SeparateWarningsAndErrors(deviceconfig.ValidateRuntimeConfig(rc))
	for _, w := range warnings {
		b.WriteString("  " + ui.DirtyStyle.Render(ui.WarningMarker+" "+w.Error()) + "\n")
	}

	return b.String()
}

func (m ReaderModel) renderRegisters() string {
	if m.Registers == nil {
		return SubtitleStyle.Render("  Loading runtime registers...")
	}
	if len(m.Registers) == 0 {
		return SubtitleStyle.Render("  No runtime registers for this configuration.")
	}
	return deviceconfig.FormatRegisterTable(m.Registers) + "\n" +
		SubtitleStyle.Render("  e writes "+deviceconfig.ExportFileName(m.now())+" to "+m.opts.ExportDir)
}

package console

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/modbusreader/internal/deviceconfig"
	"github.com/muurk/modbusreader/internal/editor"
	"github.com/muurk/modbusreader/internal/notify"
)

// API is the configuration service as the console uses it.
// *deviceconfig.Client satisfies it.
type API interface {
	editor.Service
	GetDeviceInfo(ctx context.Context) (*deviceconfig.DeviceInfo, error)
	GetRuntimeRegisterList(ctx context.Context) ([]deviceconfig.RuntimeRegisterItem, error)
	ExportRuntimeConfig(ctx context.Context) (string, error)
	WatchNotifications(ctx context.Context, fn func(notify.Notification)) error
}

// Messages for async operations
type infoLoadedMsg struct {
	info *deviceconfig.DeviceInfo
	err  error
}

type configLoadedMsg struct{ err error }

type configSavedMsg struct{ err error }

type registersLoadedMsg struct {
	items []deviceconfig.RuntimeRegisterItem
	err   error
}

type exportedMsg struct {
	path string
	err  error
}

type noteMsg notify.Notification

type watchEndedMsg struct{ err error }

// noteQueue carries notifications from the session and the service event
// stream into the Bubble Tea loop.
type noteQueue chan notify.Notification

func newNoteQueue() noteQueue {
	return make(noteQueue, notify.DefaultBuffer)
}

// Notify queues a notification, dropping it when the console is not keeping up.
func (q noteQueue) Notify(kind notify.Kind, message string) {
	q.push(notify.New(kind, message))
}

func (q noteQueue) push(n notify.Notification) {
	select {
	case q <- n:
	default:
	}
}

func waitForNote(q noteQueue) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-q
		if !ok {
			return nil
		}
		return noteMsg(n)
	}
}

func fetchInfo(ctx context.Context, api API) tea.Cmd {
	return func() tea.Msg {
		info, err := api.GetDeviceInfo(ctx)
		return infoLoadedMsg{info: info, err: err}
	}
}

func loadConfig(ctx context.Context, s *editor.Session) tea.Cmd {
	return func() tea.Msg {
		return configLoadedMsg{err: s.Load(ctx)}
	}
}

func saveConfig(ctx context.Context, s *editor.Session) tea.Cmd {
	return func() tea.Msg {
		return configSavedMsg{err: s.Save(ctx)}
	}
}

func fetchRegisters(ctx context.Context, api API) tea.Cmd {
	return func() tea.Msg {
		items, err := api.GetRuntimeRegisterList(ctx)
		return registersLoadedMsg{items: items, err: err}
	}
}

func exportRegisters(ctx context.Context, api API, dir string, now time.Time) tea.Cmd {
	return func() tea.Msg {
		data, err := api.ExportRuntimeConfig(ctx)
		if err != nil {
			return exportedMsg{err: err}
		}
		path := filepath.Join(dir, deviceconfig.ExportFileName(now))
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			return exportedMsg{err: err}
		}
		return exportedMsg{path: path}
	}
}

func watchEvents(ctx context.Context, api API, q noteQueue) tea.Cmd {
	return func() tea.Msg {
		err := api.WatchNotifications(ctx, q.push)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		return watchEndedMsg{err: err}
	}
}

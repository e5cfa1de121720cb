package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/modbusreader/internal/deviceconfig"
	"github.com/muurk/modbusreader/internal/notify"
	"github.com/muurk/modbusreader/internal/runtimeconfig"
)

type fakeService struct {
	mu      sync.Mutex
	stored  *runtimeconfig.Shape
	getErr  error
	putErr  error
	gets    int
	puts    []*runtimeconfig.Shape
	release chan struct{}
	entered chan struct{}
}

func newFakeService(selector uint16) *fakeService {
	return &fakeService{stored: &runtimeconfig.Shape{
		TagsInField:              runtimeconfig.Uint16(2),
		MemorySelector:           runtimeconfig.Uint16(selector),
		EPCLength:                runtimeconfig.Uint16(12),
		TIDLength:                runtimeconfig.Uint16(0),
		UserLength:               runtimeconfig.Uint16(4),
		SelectionMaskCount:       runtimeconfig.Uint16(0),
		SelectionMaskMaxLength:   runtimeconfig.Uint16(0),
		CustomOperationMaxLength: runtimeconfig.Uint16(0),
	}}
}

// block makes the next calls wait until release is closed.
func (f *fakeService) block() {
	f.release = make(chan struct{})
	f.entered = make(chan struct{}, 4)
}

func (f *fakeService) wait() {
	if f.release != nil {
		f.entered <- struct{}{}
		<-f.release
	}
}

func (f *fakeService) GetRuntimeConfig(ctx context.Context) (*runtimeconfig.Shape, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return runtimeconfig.New(f.stored).Flatten(), nil
}

func (f *fakeService) PutRuntimeConfig(ctx context.Context, shape *runtimeconfig.Shape) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, shape)
	if f.putErr != nil {
		return f.putErr
	}
	f.stored = shape
	return nil
}

func loadedSession(t *testing.T, svc *fakeService) (*Session, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	s := NewSession(svc, rec)
	require.NoError(t, s.Load(context.Background()))
	return s, rec
}

func TestEditsRequireLoad(t *testing.T) {
	s := NewSession(newFakeService(0), nil)

	assert.ErrorIs(t, s.SetFlag(runtimeconfig.IncludeCRC, true), ErrNotLoaded)
	assert.ErrorIs(t, s.SetLength(runtimeconfig.EPCLength, 6), ErrNotLoaded)
	assert.ErrorIs(t, s.Save(context.Background()), ErrNotLoaded)
	assert.Nil(t, s.Config())
	assert.Nil(t, s.Shape())
	assert.False(t, s.Dirty())
}

func TestLoadThenSetFlag(t *testing.T) {
	s, rec := loadedSession(t, newFakeService(0))

	require.NoError(t, s.SetFlag(runtimeconfig.IncludeCRC, true))

	shape := s.Shape()
	assert.Equal(t, uint16(4), *shape.MemorySelector)
	assert.True(t, *shape.IncludeCRC)
	assert.False(t, *shape.IncludeKillPwd)
	assert.True(t, s.Dirty())
	assert.Empty(t, rec.All(), "a successful load is silent")
}

func TestSetFlagSequence(t *testing.T) {
	s, _ := loadedSession(t, newFakeService(8))

	require.NoError(t, s.SetFlag(runtimeconfig.IncludeXPC, true))
	assert.Equal(t, uint16(24), *s.Shape().MemorySelector)

	require.NoError(t, s.SetFlag(runtimeconfig.IncludePC, false))
	assert.Equal(t, uint16(16), *s.Shape().MemorySelector)
}

func TestToggleAndRevert(t *testing.T) {
	s, _ := loadedSession(t, newFakeService(21))

	require.NoError(t, s.ToggleFlag(runtimeconfig.IncludeKillPwd))
	require.NoError(t, s.SetLength(runtimeconfig.UserLength, 0))
	assert.Equal(t, uint16(20), *s.Shape().MemorySelector)
	assert.True(t, s.Dirty())

	require.NoError(t, s.Revert())
	assert.False(t, s.Dirty())
	assert.Equal(t, uint16(21), *s.Shape().MemorySelector)
	assert.Equal(t, uint16(4), *s.Shape().UserLength)
}

func TestSaveSendsFlattenedObject(t *testing.T) {
	svc := newFakeService(21)
	s, rec := loadedSession(t, svc)

	require.NoError(t, s.SetLength(runtimeconfig.EPCLength, 6))
	require.NoError(t, s.Save(context.Background()))

	require.Len(t, svc.puts, 1)
	sent := svc.puts[0]
	assert.True(t, sent.Complete())
	assert.Equal(t, uint16(6), *sent.EPCLength)
	assert.Equal(t, uint16(21), *sent.MemorySelector)
	assert.True(t, *sent.IncludeXPC)

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.KindInfo, last.Kind)
	assert.Equal(t, SavedMessage, last.Message)
	assert.Equal(t, 1, len(rec.All()))

	// Local state is not replaced by the save.
	assert.True(t, s.Dirty())
	assert.Equal(t, 1, svc.gets)
}

func TestSaveFailureKeepsState(t *testing.T) {
	svc := newFakeService(0)
	s, rec := loadedSession(t, svc)
	require.NoError(t, s.SetFlag(runtimeconfig.IncludePC, true))
	before := s.Config()

	svc.putErr = deviceconfig.NewHTTPError(502, "Modbus write failed: timeout")
	err := s.Save(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, rec.Count(notify.KindError))
	assert.Equal(t, 0, rec.Count(notify.KindInfo))
	last, _ := rec.Last()
	assert.Equal(t, "Modbus write failed: timeout", last.Message)
	assert.True(t, before.Equal(s.Config()), "in-memory object must be unchanged")
}

func TestLoadFailureKeepsPreviousObject(t *testing.T) {
	svc := newFakeService(21)
	s, rec := loadedSession(t, svc)
	require.NoError(t, s.SetLength(runtimeconfig.TagsInField, 5))

	svc.getErr = deviceconfig.NewHTTPError(502, "reader not responding")
	require.Error(t, s.Load(context.Background()))

	assert.Equal(t, uint16(5), *s.Shape().TagsInField)
	require.Equal(t, 1, rec.Count(notify.KindError))
	last, _ := rec.Last()
	assert.Equal(t, "reader not responding", last.Message)
}

func TestLoadFailureBeforeFirstLoad(t *testing.T) {
	svc := newFakeService(0)
	svc.getErr = errors.New("boom")
	rec := &notify.Recorder{}
	s := NewSession(svc, rec)

	require.Error(t, s.Load(context.Background()))
	assert.False(t, s.Loaded())
	assert.Equal(t, 1, rec.Count(notify.KindError))
}

func TestLoadReplacesObject(t *testing.T) {
	svc := newFakeService(0)
	s, _ := loadedSession(t, svc)
	require.NoError(t, s.SetFlag(runtimeconfig.IncludeCRC, true))

	svc.stored.MemorySelector = runtimeconfig.Uint16(0x8010)
	require.NoError(t, s.Load(context.Background()))

	assert.False(t, s.Dirty())
	assert.Equal(t, uint16(0x8010), *s.Shape().MemorySelector)
	assert.Equal(t, 2, svc.gets)
}

func TestLoadInProgress(t *testing.T) {
	svc := newFakeService(0)
	svc.block()
	s := NewSession(svc, nil)

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	<-svc.entered

	assert.True(t, s.Busy())
	assert.ErrorIs(t, s.Load(context.Background()), ErrLoadInProgress)
	assert.ErrorIs(t, s.Save(context.Background()), ErrLoadInProgress)

	close(svc.release)
	require.NoError(t, <-done)
	assert.False(t, s.Busy())
	assert.Equal(t, 1, svc.gets)
}

func TestCloseDiscardsInFlightLoad(t *testing.T) {
	svc := newFakeService(21)
	svc.block()
	rec := &notify.Recorder{}
	s := NewSession(svc, rec)

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	<-svc.entered

	s.Close()
	close(svc.release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("load did not return")
	}
	assert.False(t, s.Loaded())
	assert.Empty(t, rec.All())
	assert.ErrorIs(t, s.Load(context.Background()), ErrClosed)
}

func TestCloseDiscardsInFlightSaveFailure(t *testing.T) {
	svc := newFakeService(21)
	s, rec := loadedSession(t, svc)

	svc.putErr = errors.New("late failure")
	svc.block()

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()
	<-svc.entered

	assert.ErrorIs(t, s.Save(context.Background()), ErrSaveInProgress)
	s.Close()
	close(svc.release)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Empty(t, rec.All(), "no notification for a dead session")
}

func TestApplyAssignment(t *testing.T) {
	s, _ := loadedSession(t, newFakeService(0))

	require.NoError(t, s.ApplyAssignment("includeCRC=true"))
	require.NoError(t, s.ApplyAssignment(" epcLength = 8 "))
	require.NoError(t, s.ApplyAssignment("tidLength=0x10"))

	shape := s.Shape()
	assert.Equal(t, uint16(4), *shape.MemorySelector)
	assert.Equal(t, uint16(8), *shape.EPCLength)
	assert.Equal(t, uint16(16), *shape.TIDLength)

	require.NoError(t, s.ApplyAssignment("memorySelector=0b10101"))
	assert.Equal(t, uint16(21), *s.Shape().MemorySelector)

	for _, bad := range []string{"epcLength", "includeCRC=maybe", "epcLength=70000", "antennaMask=1", "memorySelector=-1"} {
		assert.Error(t, s.ApplyAssignment(bad), bad)
	}
}

package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotification(t *testing.T) {
	a := New(KindError, "boom")
	b := New(KindError, "boom")

	assert.Equal(t, KindError, a.Kind)
	assert.Equal(t, "boom", a.Message)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Time.IsZero())
}

func TestNotificationJSON(t *testing.T) {
	data, err := json.Marshal(New(KindInfo, "saved"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "info", raw["messageType"])
	assert.Equal(t, "saved", raw["message"])
	assert.NotContains(t, raw, "origin", "origin is omitted when no client caused the notification")

	n := New(KindInfo, "updated")
	n.Origin = "console-a"
	data, err = json.Marshal(n)
	require.NoError(t, err)
	var back Notification
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "console-a", back.Origin)
}

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster()
	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	b.Notify(KindInfo, "hello")

	n1 := <-ch1
	n2 := <-ch2
	assert.Equal(t, "hello", n1.Message)
	assert.Equal(t, n1.ID, n2.ID)
	assert.Equal(t, 2, b.Subscribers())
}

func TestBroadcasterCancel(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
	assert.Equal(t, 0, b.Subscribers())

	// Publishing with no subscribers is a no-op.
	b.Notify(KindError, "nobody listening")
}

func TestBroadcasterDropsSlowSubscriber(t *testing.T) {
	b := NewBroadcaster()
	slow, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < DefaultBuffer+1; i++ {
		b.Notify(KindInfo, "tick")
	}

	assert.Equal(t, 0, b.Subscribers())

	count := 0
	for range slow {
		count++
	}
	assert.Equal(t, DefaultBuffer, count)
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster()
	ch, _ := b.Subscribe()

	b.Close()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestMulti(t *testing.T) {
	var first, second Recorder
	n := Multi(&first, nil, &second)

	n.Notify(KindError, "failed")

	require.Len(t, first.All(), 1)
	require.Len(t, second.All(), 1)
	assert.Equal(t, KindError, second.All()[0].Kind)
}

func TestNotifierFunc(t *testing.T) {
	var got string
	var n Notifier = NotifierFunc(func(kind Kind, message string) { got = string(kind) + ":" + message })

	n.Notify(KindInfo, "ok")
	assert.Equal(t, "info:ok", got)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)

	r.Notify(KindError, "one")
	r.Notify(KindInfo, "two")
	r.Notify(KindError, "three")

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "three", last.Message)
	assert.Equal(t, 2, r.Count(KindError))
	assert.Equal(t, 1, r.Count(KindInfo))
}

func TestLogNotifier(t *testing.T) {
	// The default logger is a no-op; this only checks it does not panic.
	LogNotifier{}.Notify(KindError, "device unreachable")
}

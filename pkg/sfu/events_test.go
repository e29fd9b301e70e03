package sfu

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDropsWhenFull(t *testing.T) {
	b := NewBus(2)
	assert.True(t, b.Emit(&Ready{}))
	assert.True(t, b.Emit(&Closed{}))
	assert.False(t, b.Emit(&Closed{}))

	assert.Equal(t, EventReady, (<-b.Events()).Type())
	assert.True(t, b.Emit(&Closed{}))
}

func TestBusClose(t *testing.T) {
	b := NewBus(4)
	require.True(t, b.Emit(&Ready{}))
	b.Close()
	b.Close()
	assert.False(t, b.Emit(&Closed{}))

	var got []EventType
	for ev := range b.Events() {
		got = append(got, ev.Type())
	}
	assert.Equal(t, []EventType{EventReady}, got)
}

func TestBusOnEvent(t *testing.T) {
	b := NewBus(0)

	var (
		mu  sync.Mutex
		got []EventType
	)
	b.OnEvent(func(ev Event) {
		mu.Lock()
		got = append(got, ev.Type())
		mu.Unlock()
	})
	b.Emit(&Ready{})
	b.Emit(&TrackAdded{})
	b.Emit(&Closed{})
	b.Close()

	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not finish")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EventReady, EventTrackAdded, EventClosed}, got)
}

func TestEventNames(t *testing.T) {
	assert.Equal(t, "rtp:forward", EventRTPForward.String())
	assert.Equal(t, "rtcp:app", EventRTCPApplication.String())
	assert.Equal(t, "unknown", EventType(99).String())
	assert.Equal(t, "unresolved", ErrorUnresolved.String())
}

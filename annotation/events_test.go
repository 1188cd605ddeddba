package annotation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var got []string
	unsubscribe := bus.Subscribe(EventObjectAdded, func(e Event) {
		got = append(got, "object:"+e.Value.(string))
	})
	bus.SubscribeAll(func(e Event) {
		got = append(got, "all:"+string(e.Name))
	})

	bus.Emit(EventObjectAdded, "block")
	bus.Emit(EventStatusChanged, "ready")
	unsubscribe()
	bus.Emit(EventObjectAdded, "hand")

	require.Equal(t, []string{
		"object:block",
		"all:objectAdded",
		"all:statusChanged",
		"all:objectAdded",
	}, got)
}

func TestEventBus_NilSafe(t *testing.T) {
	var bus *EventBus
	bus.Emit(EventStatusChanged, nil)
}

func TestEventName_Valid(t *testing.T) {
	for _, name := range EventNames {
		require.True(t, name.Valid(), name)
	}
	require.False(t, EventName("framesChanged").Valid())
}

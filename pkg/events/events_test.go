package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishDispatchesInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe("event", func(payload any) {
		got = append(got, "first:"+payload.(string))
	})
	bus.Subscribe("event", func(payload any) {
		got = append(got, "second:"+payload.(string))
	})

	bus.Publish("event", "x")

	assert.Equal(t, []string{"first:x", "second:x"}, got)
}

func TestPublishIgnoresOtherEvents(t *testing.T) {
	bus := NewBus()

	var calls int
	bus.Subscribe("wanted", func(any) { calls++ })

	bus.Publish("other", nil)
	assert.Zero(t, calls)

	bus.Publish("wanted", nil)
	assert.Equal(t, 1, calls)
}

func TestPublishWithoutSubscribersIsSafe(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() { bus.Publish("nobody", 42) })
}

func TestSubscribeDuringDispatchDoesNotAffectCurrentPublish(t *testing.T) {
	bus := NewBus()

	var calls int
	bus.Subscribe("event", func(any) {
		calls++
		// The snapshot taken at publish time must not include this one.
		bus.Subscribe("event", func(any) { calls += 100 })
	})

	bus.Publish("event", nil)
	assert.Equal(t, 1, calls)

	bus.Publish("event", nil)
	assert.Equal(t, 102, calls)
}

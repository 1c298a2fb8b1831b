package authbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_FiltersByBrowser(t *testing.T) {
	bus := New()

	var got []Event
	unsub := bus.Subscribe("b1", func(e Event) { got = append(got, e) })

	bus.Publish(Event{BrowserID: "b1", Reason: ReasonLogin})
	bus.Publish(Event{BrowserID: "b2", Reason: ReasonLogin})
	assert.Equal(t, []Event{{BrowserID: "b1", Reason: ReasonLogin}}, got)

	unsub()
	assert.Equal(t, 0, bus.Subscribers())
	bus.Publish(Event{BrowserID: "b1", Reason: ReasonLogout})
	assert.Len(t, got, 1)
}

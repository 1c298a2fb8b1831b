// Package authbus carries "auth changed" notifications from the login and
// logout flows to every component that renders on the session verdict.
package authbus

import (
	"github.com/campusnotes/notes-admin/internal/pubsub"
)

// Reasons raised by the credential write path
const (
	ReasonLogin  = "login"
	ReasonLogout = "logout"
)

// Event announces that the auth state of one browser was mutated
type Event struct {
	BrowserID string
	Reason    string
}

// Publisher is what the credential write path depends on
type Publisher interface {
	Publish(Event)
}

// Subscriber is what the admin gate depends on
type Subscriber interface {
	Subscribe(browserID string, fn func(Event)) (unsubscribe func())
}

// Bus is the in-process implementation of Publisher and Subscriber
type Bus struct {
	topic *pubsub.Topic[Event]
}

// New creates a bus with no subscribers
func New() *Bus {
	return &Bus{topic: pubsub.NewTopic[Event]()}
}

func (b *Bus) Publish(e Event) {
	b.topic.Publish(e)
}

// Subscribe delivers events for browserID only
func (b *Bus) Subscribe(browserID string, fn func(Event)) func() {
	return b.topic.Subscribe(func(e Event) {
		if e.BrowserID == browserID {
			fn(e)
		}
	})
}

// Subscribers returns the number of registered listeners
func (b *Bus) Subscribers() int {
	return b.topic.Len()
}

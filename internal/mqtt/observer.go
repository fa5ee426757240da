package mqtt

import (
	"log"

	"github.com/google/uuid"

	"github.com/sweeney/timed-io/internal/logic"
)

// Observer logs tracker and timer notifications and forwards them to a
// Publisher. ON and OFF transitions of one sensor share a session id.
// Publish failures are logged and never returned to the state machines.
type Observer struct {
	pub      Publisher
	sessions map[string]string
	newID    func() string
}

// NewObserver creates an Observer. A nil pub only logs.
func NewObserver(pub Publisher) *Observer {
	return &Observer{
		pub:      pub,
		sessions: make(map[string]string),
		newID:    uuid.NewString,
	}
}

// Transition implements logic.Observer.
func (o *Observer) Transition(ev logic.TransitionEvent) {
	session := o.sessions[ev.Sensor]
	if ev.State == logic.StateOn {
		session = o.newID()
		o.sessions[ev.Sensor] = session
		log.Printf("event: %s ON (pin=%d session=%s)", ev.Sensor, ev.Pin, session)
	} else {
		delete(o.sessions, ev.Sensor)
		log.Printf("event: %s OFF (pin=%d session=%s duration=%v)", ev.Sensor, ev.Pin, session, ev.Duration)
	}

	if o.pub == nil {
		return
	}
	if err := o.pub.PublishTransition(TransitionEvent{TransitionEvent: ev, Session: session}); err != nil {
		log.Printf("publish error: %v", err)
	}
}

// Persist implements logic.Observer.
func (o *Observer) Persist(ev logic.PersistEvent) {
	if ev.Written {
		log.Printf("nvram: %s slot=%d month=%d value=%dms written", ev.Sensor, ev.Slot, ev.Month, ev.Value)
	} else {
		log.Printf("nvram: %s slot=%d month=%d value=%dms unchanged, write suppressed", ev.Sensor, ev.Slot, ev.Month, ev.Value)
	}

	if o.pub == nil {
		return
	}
	if err := o.pub.PublishPersist(ev); err != nil {
		log.Printf("publish error: %v", err)
	}
}

// Rollover implements logic.Observer.
func (o *Observer) Rollover(ev logic.RolloverEvent) {
	switch ev.Kind {
	case logic.RolloverDay:
		log.Printf("rollover: %s new day %d, today's ON time reset", ev.Sensor, ev.Value)
	case logic.RolloverMonth:
		log.Printf("rollover: %s new month %d, monthly total flushed", ev.Sensor, ev.Value)
	}
}

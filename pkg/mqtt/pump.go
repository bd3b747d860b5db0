package mqtt

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type eventKind int

const (
	eventConnected eventKind = iota
	eventConnectionLost
	eventMessage
	eventDelivered
	eventSubscribed
)

func (k eventKind) String() string {
	switch k {
	case eventConnected:
		return "connected"
	case eventConnectionLost:
		return "connection_lost"
	case eventMessage:
		return "message"
	case eventDelivered:
		return "delivered"
	case eventSubscribed:
		return "subscribed"
	}
	return "unknown"
}

type event struct {
	kind     eventKind
	topic    string
	client   mqtt.Client
	msg      mqtt.Message
	delivery *Delivery
	err      error
}

// Pump applies queued network events. It blocks until at least one event
// arrives or timeout elapses, then applies whatever else was already queued.
// Control events go before messages.
func (c *Connection) Pump(timeout time.Duration) {
	if c.connectAcked.CompareAndSwap(true, false) {
		c.dispatch(event{kind: eventConnected})
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case ev := <-c.control:
			c.dispatch(ev)
		case ev := <-c.messages:
			c.dispatch(ev)
		case <-timer.C:
			return
		}
	}

	// Bounded so a steady message stream cannot keep Pump from returning.
	for pending := len(c.control) + len(c.messages); pending > 0; pending-- {
		select {
		case ev := <-c.control:
			c.dispatch(ev)
			continue
		default:
		}

		select {
		case ev := <-c.control:
			c.dispatch(ev)
		case ev := <-c.messages:
			c.dispatch(ev)
		default:
			return
		}
	}
}

func (c *Connection) dispatch(ev event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Str("event", ev.kind.String()).Msg("Recovered from panic in MQTT callback")
		}
	}()

	switch ev.kind {
	case eventConnected:
		c.logger.Debug().Msg("Broker acknowledged connection")
		if c.handlers.OnConnect != nil {
			c.handlers.OnConnect()
		}
	case eventConnectionLost:
		c.logger.Warn().Err(ev.err).Msg("Lost connection to MQTT broker")
	case eventMessage:
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(ev.client, ev.msg)
		}
	case eventDelivered:
		ev.delivery.settle(ev.err)
		if ev.err != nil {
			c.logger.Warn().Err(ev.err).Str("topic", ev.delivery.topic).Msg("Publish failed")
		}
	case eventSubscribed:
		if ev.err != nil {
			c.logger.Warn().Err(ev.err).Str("topic", ev.topic).Msg("Subscription failed")
		}
	}
}

package services_test

import (
	"time"

	"github.com/benmeehan/command-bridge/internal/mocks"
	"github.com/benmeehan/command-bridge/internal/services"
	"github.com/benmeehan/command-bridge/pkg/mqtt"
)

const never = -1

// deliveryPlan scripts the outcome of one publish.
type deliveryPlan struct {
	err          error // transport failure reported immediately
	confirmAfter int   // pumps until the broker confirms; never for no confirmation
}

type fakeResult struct {
	plan      deliveryPlan
	pumped    int
	published bool
}

func (r *fakeResult) Published() bool { return r.published }
func (r *fakeResult) Err() error      { return r.plan.err }

type publishCall struct {
	topic   string
	payload []byte
}

// fakeConnection is a scripted BrokerConnection. Events only fire inside Pump.
type fakeConnection struct {
	handlers mqtt.Handlers

	plans          []deliveryPlan // consumed one per Publish; the last one repeats
	ackOnDial      bool           // acknowledge the first connect on the first pump
	ackOnReconnect bool           // acknowledge reconnects on the next pump
	reconnectErr   error
	reply          func(payload []byte) []byte // device answer to a confirmed publish, nil for silence
	statusTopic    string

	pendingAck bool
	queue      []func()
	active     *fakeResult

	publishes  []publishCall
	subscribes []string
	reconnects int
	pumps      int
}

func (f *fakeConnection) dialer() services.Dialer {
	return func(h mqtt.Handlers) (services.BrokerConnection, error) {
		f.handlers = h
		f.pendingAck = f.ackOnDial
		return f, nil
	}
}

func (f *fakeConnection) Subscribe(topic string) error {
	f.subscribes = append(f.subscribes, topic)
	return nil
}

func (f *fakeConnection) Publish(topic string, payload []byte) mqtt.PublishResult {
	plan := deliveryPlan{confirmAfter: 1}
	if len(f.plans) > 0 {
		plan = f.plans[0]
		if len(f.plans) > 1 {
			f.plans = f.plans[1:]
		}
	}
	f.publishes = append(f.publishes, publishCall{topic: topic, payload: payload})
	f.active = &fakeResult{plan: plan}
	return f.active
}

func (f *fakeConnection) Pump(time.Duration) {
	f.pumps++

	if f.pendingAck {
		f.pendingAck = false
		f.handlers.OnConnect()
	}

	queued := f.queue
	f.queue = nil
	for _, fire := range queued {
		fire()
	}

	r := f.active
	if r == nil || r.published || r.plan.err != nil || r.plan.confirmAfter == never {
		return
	}
	r.pumped++
	if r.pumped < r.plan.confirmAfter {
		return
	}
	r.published = true
	if f.reply == nil {
		return
	}
	if answer := f.reply(f.publishes[len(f.publishes)-1].payload); answer != nil {
		f.deliver(f.statusTopic, answer)
	}
}

// deliver queues an inbound message for the next pump.
func (f *fakeConnection) deliver(topic string, payload []byte) {
	f.queue = append(f.queue, func() {
		f.handlers.OnMessage(nil, mocks.NewMockMessage(topic, payload))
	})
}

func (f *fakeConnection) Reconnect() error {
	f.reconnects++
	if f.reconnectErr != nil {
		return f.reconnectErr
	}
	f.pendingAck = f.ackOnReconnect
	return nil
}

func (f *fakeConnection) Close() {}

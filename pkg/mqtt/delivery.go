package mqtt

// PublishResult reports the transport-level outcome of a publish. It says
// nothing about whether a device acted on the message.
type PublishResult interface {
	// Published reports whether the broker accepted the message.
	Published() bool
	// Err returns the transport failure, if the publish failed.
	Err() error
}

// Delivery tracks one publish. It is only mutated on the pumping goroutine.
type Delivery struct {
	topic     string
	settled   bool
	published bool
	err       error
}

// Published reports whether the broker accepted the message.
func (d *Delivery) Published() bool {
	return d.published
}

// Err returns the transport failure, if any.
func (d *Delivery) Err() error {
	return d.err
}

// Settled reports whether the publish finished either way.
func (d *Delivery) Settled() bool {
	return d.settled
}

func (d *Delivery) settle(err error) {
	d.settled = true
	d.err = err
	d.published = err == nil
}

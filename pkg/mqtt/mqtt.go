package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benmeehan/command-bridge/pkg/file"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	// controlBufferSize sizes the queue of delivery, subscribe and connection
	// events. Those are never dropped; producers block until pumped or closed.
	controlBufferSize = 64
	// messageBufferSize bounds inbound messages kept between pumps. When full
	// the oldest message is dropped.
	messageBufferSize = 256
)

// ErrConnectTimeout is returned when the broker does not acknowledge a connect in time.
var ErrConnectTimeout = errors.New("timed out waiting for broker connect acknowledgement")

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Options holds the broker connection parameters.
type Options struct {
	Host               string
	Port               int
	ClientID           string
	Username           string
	Password           string
	CACertificate      string // Path to a CA bundle; enables TLS when set
	InsecureSkipVerify bool
	QOS                byte
	KeepAlive          time.Duration
	ConnectTimeout     time.Duration
}

// BrokerURL returns the paho broker address for the options.
func (o Options) BrokerURL() string {
	scheme := "tcp"
	if o.CACertificate != "" {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, o.Host, o.Port)
}

// Handlers are invoked from Pump, on the goroutine that pumps.
type Handlers struct {
	OnConnect func()
	OnMessage mqtt.MessageHandler
}

// Connection is an MQTT session whose callbacks only run when pumped.
// paho delivers network events on its own goroutines; Connection queues them
// and applies them in Pump, so callers observe state changes only at pump
// boundaries.
type Connection struct {
	client         MQTTClient
	qos            byte
	connectTimeout time.Duration
	handlers       Handlers
	logger         zerolog.Logger

	connectAcked atomic.Bool // set by Connect, reported by the next Pump
	control      chan event
	messages     chan event
	messagesMu   sync.Mutex // serializes drop-oldest producers
	closed       chan struct{}
	closeOnce    sync.Once
}

// NewConnection builds a paho client for opts without connecting it.
func NewConnection(opts Options, fileClient file.FileOperations, handlers Handlers, logger zerolog.Logger) (*Connection, error) {
	c := newConnection(nil, opts, handlers, logger)

	clientOpts, err := c.clientOptions(opts, fileClient)
	if err != nil {
		return nil, err
	}
	c.client = mqtt.NewClient(clientOpts)
	return c, nil
}

func newConnection(client MQTTClient, opts Options, handlers Handlers, logger zerolog.Logger) *Connection {
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	return &Connection{
		client:         client,
		qos:            opts.QOS,
		connectTimeout: connectTimeout,
		handlers:       handlers,
		logger:         logger,
		control:        make(chan event, controlBufferSize),
		messages:       make(chan event, messageBufferSize),
		closed:         make(chan struct{}),
	}
}

// NewConnectionFromClient wraps an existing client, such as a test double.
// The connect acknowledgement still comes from Connect.
func NewConnectionFromClient(client MQTTClient, opts Options, handlers Handlers, logger zerolog.Logger) *Connection {
	return newConnection(client, opts, handlers, logger)
}

// clientOptions sets up the paho options. Auto reconnect stays off: the
// command bridge decides when to reconnect.
func (c *Connection) clientOptions(opts Options, fileClient file.FileOperations) (*mqtt.ClientOptions, error) {
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.BrokerURL())
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(false)
	clientOpts.SetConnectRetry(false)
	clientOpts.SetCleanSession(true)
	clientOpts.SetConnectTimeout(c.connectTimeout)
	if opts.KeepAlive > 0 {
		clientOpts.SetKeepAlive(opts.KeepAlive)
	}
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	if opts.CACertificate != "" {
		caCert, err := fileClient.ReadFileRaw(opts.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to append CA certificate")
		}
		clientOpts.SetTLSConfig(&tls.Config{
			RootCAs:            caCertPool,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		})
	}

	clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.enqueue(event{kind: eventConnectionLost, err: err})
	})
	return clientOpts, nil
}

// Connect dials the broker and waits for the connect token. A successful
// connect is reported to OnConnect by the next Pump.
func (c *Connection) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(c.connectTimeout) {
		return ErrConnectTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	c.connectAcked.Store(true)
	c.logger.Info().Msg("Connected to MQTT broker")
	return nil
}

// Reconnect re-establishes the broker session on the same client, keeping
// the callbacks attached. Subscriptions do not survive and must be re-issued.
func (c *Connection) Reconnect() error {
	c.logger.Info().Msg("Reconnecting to MQTT broker")
	c.client.Disconnect(0)
	return c.Connect()
}

// Subscribe requests messages for topic. The outcome of an asynchronous
// subscription is only logged; an immediate failure is returned.
func (c *Connection) Subscribe(topic string) error {
	token := c.client.Subscribe(topic, c.qos, c.receive)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		return nil
	default:
	}

	go func() {
		<-token.Done()
		c.enqueue(event{kind: eventSubscribed, topic: topic, err: token.Error()})
	}()
	return nil
}

// Publish sends payload to topic. The returned result settles during Pump,
// unless the client rejects the message immediately.
func (c *Connection) Publish(topic string, payload []byte) PublishResult {
	delivery := &Delivery{topic: topic}
	token := c.client.Publish(topic, c.qos, false, payload)

	select {
	case <-token.Done():
		delivery.settle(token.Error())
		return delivery
	default:
	}

	go func() {
		<-token.Done()
		c.enqueue(event{kind: eventDelivered, delivery: delivery, err: token.Error()})
	}()
	return delivery
}

// Close disconnects from the broker and releases goroutines still waiting
// to queue an event.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
	c.client.Disconnect(250)
}

// receive is the paho message callback; it runs on a paho goroutine.
func (c *Connection) receive(client mqtt.Client, msg mqtt.Message) {
	c.enqueue(event{kind: eventMessage, client: client, msg: msg})
}

// enqueue queues ev for the next Pump. Control events wait for room;
// messages make room by dropping the oldest queued message.
func (c *Connection) enqueue(ev event) {
	if ev.kind == eventMessage {
		c.enqueueMessage(ev)
		return
	}
	select {
	case c.control <- ev:
	case <-c.closed:
		c.logger.Debug().Str("event", ev.kind.String()).Msg("Connection closed, discarding event")
	}
}

func (c *Connection) enqueueMessage(ev event) {
	c.messagesMu.Lock()
	defer c.messagesMu.Unlock()

	for {
		select {
		case c.messages <- ev:
			return
		default:
		}

		select {
		case dropped := <-c.messages:
			c.logger.Warn().Str("topic", dropped.msg.Topic()).Msg("MQTT message queue full, dropping oldest message")
		default:
		}
	}
}

package services

import (
	"github.com/benmeehan/command-bridge/internal/session"
	"github.com/benmeehan/command-bridge/internal/utils"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// closeWorkers bounds how many sessions are disconnected in parallel.
const closeWorkers = 8

// DialerFactory builds a Dialer that connects with clientID.
type DialerFactory func(clientID string) Dialer

// OperatorSession bundles the state and the bridge of one operator session.
type OperatorSession struct {
	Session     *session.Session
	Connections *ConnectionManager
	Bridge      *CommandBridge
}

// SessionRegistry keeps one OperatorSession per operator session id. Each
// session gets its own MQTT client id so sessions never share a broker
// session or a status channel.
type SessionRegistry struct {
	baseClientID string
	bridgeOpts   BridgeOptions
	newDialer    DialerFactory
	sessions     cmap.ConcurrentMap[string, *OperatorSession]
	logger       zerolog.Logger
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(baseClientID string, bridgeOpts BridgeOptions, newDialer DialerFactory, logger zerolog.Logger) *SessionRegistry {
	return &SessionRegistry{
		baseClientID: baseClientID,
		bridgeOpts:   bridgeOpts,
		newDialer:    newDialer,
		sessions:     cmap.New[*OperatorSession](),
		logger:       logger,
	}
}

// Open returns the session for id, creating it on first use.
func (r *SessionRegistry) Open(id string) *OperatorSession {
	if existing, ok := r.sessions.Get(id); ok {
		return existing
	}

	created := r.newOperatorSession(id)
	stored := r.sessions.Upsert(id, created, func(exist bool, inMap, newValue *OperatorSession) *OperatorSession {
		if exist {
			return inMap
		}
		return newValue
	})
	if stored == created {
		r.logger.Info().Str("session_id", id).Msg("Operator session opened")
	}
	return stored
}

// Get returns the session for id if it is open.
func (r *SessionRegistry) Get(id string) (*OperatorSession, bool) {
	return r.sessions.Get(id)
}

// Count returns the number of open sessions.
func (r *SessionRegistry) Count() int {
	return r.sessions.Count()
}

// Close disconnects and forgets the session for id.
func (r *SessionRegistry) Close(id string) {
	sess, ok := r.sessions.Pop(id)
	if !ok {
		return
	}
	sess.Connections.Close()
	r.logger.Info().Str("session_id", id).Msg("Operator session closed")
}

// CloseAll disconnects every open session.
func (r *SessionRegistry) CloseAll() {
	pool := utils.NewWorkerPool(closeWorkers)
	for _, id := range r.sessions.Keys() {
		id := id
		pool.Submit(func() { r.Close(id) })
	}
	pool.Shutdown()
}

func (r *SessionRegistry) newOperatorSession(id string) *OperatorSession {
	logger := r.logger.With().Str("session_id", id).Logger()
	clientID := r.baseClientID + "-" + uuid.New().String()

	sess := session.New(id)
	listener := NewStatusListener(r.bridgeOpts.withDefaults().StatusTopic, sess, logger)
	connections := NewConnectionManager(r.newDialer(clientID), sess, listener, logger)
	bridge := NewCommandBridge(r.bridgeOpts, connections, sess, logger)

	return &OperatorSession{
		Session:     sess,
		Connections: connections,
		Bridge:      bridge,
	}
}

// Package channel owns the single push-channel connection of an
// authenticated session: lifecycle, automatic reconnection, the
// acknowledged send protocol, and presence signaling.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/boardsync/boardsync/internal/event"
	"github.com/boardsync/boardsync/internal/logging"
	"github.com/boardsync/boardsync/internal/metrics"
	"github.com/google/uuid"
)

// State describes the channel connection lifecycle. The channel is in
// exactly one state at any instant.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Options configures a Manager.
type Options struct {
	// URL of the push endpoint.
	URL string
	// Dialer establishes raw sockets. Defaults to the websocket dialer.
	Dialer Dialer
	// Bus receives every routed inbound frame.
	Bus *event.Bus
	// ReconnectDelay is the fixed delay between reconnection attempts.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts bounds automatic reconnection after a drop.
	MaxReconnectAttempts int
	// HandshakeTimeout bounds the wait for the server's connected frame.
	HandshakeTimeout time.Duration
	// SendTimeout bounds the wait for a send acknowledgment.
	SendTimeout time.Duration
}

// Manager owns one push-channel connection per authenticated session. The
// connection is never shared or cloned; all access goes through the manager.
type Manager struct {
	opts Options

	mu       sync.Mutex
	state    State
	sock     Socket
	token    string
	gen      uint64 // connection generation; bumped on every teardown
	pending  map[string]chan event.SendAck
	watchers []func(bool)

	writeMu sync.Mutex

	// sleep is swapped out in tests to avoid real reconnect delays
	sleep func(time.Duration)
}

// NewManager returns a disconnected manager.
func NewManager(opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = NewDialer(opts.HandshakeTimeout)
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	return &Manager{
		opts:    opts,
		pending: make(map[string]chan event.SendAck),
		sleep:   time.Sleep,
	}
}

// Connect establishes the channel using the supplied session credential.
// Calling it while the channel is live or already connecting is a no-op.
// An empty credential fails immediately: there is no anonymous channel.
func (m *Manager) Connect(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoCredential
	}

	m.mu.Lock()
	if m.state != Disconnected {
		m.mu.Unlock()
		return nil
	}
	m.state = Connecting
	m.token = token
	gen := m.gen
	m.mu.Unlock()

	if err := m.establish(ctx, gen); err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.state = Disconnected
		}
		m.mu.Unlock()
		metrics.IncHandshakeFailure()
		return err
	}
	return nil
}

// establish dials and completes the handshake for the given generation.
// Returns an error without changing state; the caller decides the fallout.
func (m *Manager) establish(ctx context.Context, gen uint64) error {
	log := logging.Component("channel")

	sock, err := m.opts.Dialer.Dial(ctx, m.opts.URL, m.token)
	if err != nil {
		return err
	}
	if err := m.awaitHello(ctx, sock); err != nil {
		_ = sock.Close()
		return err
	}

	m.mu.Lock()
	if m.gen != gen {
		// Disconnect raced us; the session is gone.
		m.mu.Unlock()
		_ = sock.Close()
		return ErrChannelUnavailable
	}
	m.sock = sock
	m.state = Connected
	m.mu.Unlock()

	connID := uuid.New().String()
	log.Info().Str("conn", connID).Msg("channel connected")
	metrics.IncConnect()
	metrics.SetConnected(true)
	m.notifyWatchers(true)

	go m.readPump(gen, sock, connID)
	return nil
}

// awaitHello waits for the server to acknowledge the handshake with a
// connected frame. Anything else means the credential was refused.
func (m *Manager) awaitHello(ctx context.Context, sock Socket) error {
	result := make(chan error, 1)
	go func() {
		var f event.Frame
		if err := sock.ReadJSON(&f); err != nil {
			result <- fmt.Errorf("%w: %v", ErrHandshakeRejected, err)
			return
		}
		if f.Event != event.EventConnected {
			result <- fmt.Errorf("%w: unexpected first frame %q", ErrHandshakeRejected, f.Event)
			return
		}
		result <- nil
	}()

	timer := time.NewTimer(m.opts.HandshakeTimeout)
	defer timer.Stop()
	select {
	case err := <-result:
		return err
	case <-timer.C:
		return fmt.Errorf("%w: no ack within %v", ErrHandshakeRejected, m.opts.HandshakeTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readPump is the single consumer of inbound frames for one connection.
// It exits when the socket errors or the generation is invalidated.
func (m *Manager) readPump(gen uint64, sock Socket, connID string) {
	log := logging.Component("channel")
	for {
		var f event.Frame
		if err := sock.ReadJSON(&f); err != nil {
			m.handleDrop(gen, err)
			return
		}

		m.mu.Lock()
		stale := m.gen != gen
		m.mu.Unlock()
		if stale {
			// Torn down while the frame was in flight; drop it.
			return
		}

		if f.Event == event.EventAck {
			m.resolveAck(f)
			continue
		}

		log.Debug().Str("conn", connID).Str("event", f.Event).Msg("frame received")
		metrics.IncFrame(f.Event)
		if m.opts.Bus != nil {
			m.opts.Bus.Publish(f)
		}
	}
}

// resolveAck completes a pending send with the server's acknowledgment.
func (m *Manager) resolveAck(f event.Frame) {
	m.mu.Lock()
	ch, ok := m.pending[f.ID]
	if ok {
		delete(m.pending, f.ID)
	}
	m.mu.Unlock()
	if !ok {
		// Late ack for a send that already timed out.
		return
	}

	var ack event.SendAck
	if err := json.Unmarshal(f.Payload, &ack); err != nil {
		log := logging.Component("channel")
		log.Warn().Err(err).Str("id", f.ID).Msg("malformed ack payload")
	}
	ch <- ack
}

// handleDrop reacts to an unexpected transport failure: the live signal goes
// false immediately and a bounded reconnect loop starts.
func (m *Manager) handleDrop(gen uint64, cause error) {
	m.mu.Lock()
	if m.gen != gen {
		// Explicit disconnect already tore this connection down.
		m.mu.Unlock()
		return
	}
	m.gen++
	nextGen := m.gen
	m.state = Connecting
	sock := m.sock
	m.sock = nil
	m.failPendingLocked()
	m.mu.Unlock()

	if sock != nil {
		_ = sock.Close()
	}
	metrics.SetConnected(false)
	m.notifyWatchers(false)
	log := logging.Component("channel")
	log.Warn().Err(cause).Msg("channel dropped, reconnecting")

	go m.reconnect(nextGen)
}

// reconnect retries with a fixed delay up to the configured bound. Exhausting
// the bound leaves the channel Disconnected; a stale credential surfaces here
// as attempts that never succeed.
func (m *Manager) reconnect(gen uint64) {
	log := logging.Component("channel")
	for attempt := 1; attempt <= m.opts.MaxReconnectAttempts; attempt++ {
		m.sleep(m.opts.ReconnectDelay)

		m.mu.Lock()
		if m.gen != gen || m.state != Connecting {
			// Explicit disconnect (or a newer session) while we were waiting.
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		metrics.IncReconnect()
		log.Info().Int("attempt", attempt).Msg("reconnection attempt")
		if err := m.establish(context.Background(), gen); err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("reconnection failed")
			continue
		}
		return
	}

	m.mu.Lock()
	if m.gen == gen && m.state == Connecting {
		m.state = Disconnected
	}
	m.mu.Unlock()
	log.Error().Int("attempts", m.opts.MaxReconnectAttempts).Msg("reconnection attempts exhausted")
}

// Disconnect tears the channel down. Idempotent; after it returns no further
// inbound events are delivered, even those in flight.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == Disconnected {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.state = Disconnected
	sock := m.sock
	m.sock = nil
	m.failPendingLocked()
	m.mu.Unlock()

	if sock != nil {
		_ = sock.Close()
	}
	metrics.SetConnected(false)
	m.notifyWatchers(false)
	log := logging.Component("channel")
	log.Info().Msg("channel disconnected")
}

// failPendingLocked completes all in-flight sends with a failure ack.
// Callers must hold m.mu.
func (m *Manager) failPendingLocked() {
	for id, ch := range m.pending {
		delete(m.pending, id)
		ch <- event.SendAck{Success: false, Error: "channel closed"}
	}
}

// Live reports whether the channel is currently connected.
func (m *Manager) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Connected
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Notify registers a watcher invoked on every live/dead transition. There is
// no per-frame error reporting; this boolean signal is the only
// connection-level failure surface.
func (m *Manager) Notify(fn func(live bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, fn)
}

func (m *Manager) notifyWatchers(live bool) {
	m.mu.Lock()
	watchers := make([]func(bool), len(m.watchers))
	copy(watchers, m.watchers)
	m.mu.Unlock()
	for _, fn := range watchers {
		fn(live)
	}
}

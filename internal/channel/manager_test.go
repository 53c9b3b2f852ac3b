package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boardsync/boardsync/internal/event"
)

// fakeSocket is an in-memory Socket fed by the test acting as the server.
type fakeSocket struct {
	mu      sync.Mutex
	inbound chan event.Frame
	written []event.Frame
	onWrite func(event.Frame)
	closed  chan struct{}
	once    sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		inbound: make(chan event.Frame, 16),
		closed:  make(chan struct{}),
	}
}

func (s *fakeSocket) ReadJSON(v any) error {
	select {
	case f := <-s.inbound:
		*(v.(*event.Frame)) = f
		return nil
	case <-s.closed:
		return errors.New("use of closed connection")
	}
}

func (s *fakeSocket) WriteJSON(v any) error {
	select {
	case <-s.closed:
		return errors.New("use of closed connection")
	default:
	}
	f := v.(event.Frame)
	s.mu.Lock()
	s.written = append(s.written, f)
	hook := s.onWrite
	s.mu.Unlock()
	if hook != nil {
		hook(f)
	}
	return nil
}

func (s *fakeSocket) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) push(f event.Frame) { s.inbound <- f }

func (s *fakeSocket) writtenFrames() []event.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Frame, len(s.written))
	copy(out, s.written)
	return out
}

// fakeDialer hands out sockets in order, optionally failing first.
type fakeDialer struct {
	mu       sync.Mutex
	sockets  []*fakeSocket
	failures int // dials to fail before handing out sockets
	dials    int
	greet    bool // queue the connected frame on each fresh socket
}

func (d *fakeDialer) Dial(ctx context.Context, url, token string) (Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection refused")
	}
	if len(d.sockets) == 0 {
		return nil, errors.New("no more sockets")
	}
	s := d.sockets[0]
	d.sockets = d.sockets[1:]
	if d.greet {
		s.push(event.Frame{Event: event.EventConnected})
	}
	return s, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func newTestManager(d Dialer, bus *event.Bus) *Manager {
	m := NewManager(Options{
		URL:                  "ws://test/ws",
		Dialer:               d,
		Bus:                  bus,
		ReconnectDelay:       time.Millisecond,
		MaxReconnectAttempts: 3,
		HandshakeTimeout:     200 * time.Millisecond,
		SendTimeout:          200 * time.Millisecond,
	})
	m.sleep = func(time.Duration) {}
	return m
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func TestConnectEstablishesChannel(t *testing.T) {
	sock := newFakeSocket()
	d := &fakeDialer{sockets: []*fakeSocket{sock}, greet: true}
	m := newTestManager(d, nil)

	var transitions []bool
	var tmu sync.Mutex
	m.Notify(func(live bool) {
		tmu.Lock()
		transitions = append(transitions, live)
		tmu.Unlock()
	})

	if err := m.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !m.Live() {
		t.Fatal("expected channel to be live after handshake")
	}
	if m.State() != Connected {
		t.Fatalf("expected Connected, got %v", m.State())
	}
	tmu.Lock()
	defer tmu.Unlock()
	if len(transitions) != 1 || !transitions[0] {
		t.Fatalf("expected one live=true transition, got %v", transitions)
	}
}

func TestConnectWithoutCredential(t *testing.T) {
	m := newTestManager(&fakeDialer{}, nil)
	if err := m.Connect(context.Background(), ""); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	if m.State() != Disconnected {
		t.Fatalf("expected Disconnected, got %v", m.State())
	}
}

func TestConnectWhileConnectedIsNoOp(t *testing.T) {
	sock := newFakeSocket()
	d := &fakeDialer{sockets: []*fakeSocket{sock}, greet: true}
	m := newTestManager(d, nil)

	if err := m.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("first Connect failed: %v", err)
	}
	if err := m.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("second Connect should be a no-op, got %v", err)
	}
	if d.dialCount() != 1 {
		t.Fatalf("expected exactly one dial, got %d", d.dialCount())
	}
}

func TestHandshakeRejected(t *testing.T) {
	sock := newFakeSocket()
	sock.push(event.Frame{Event: "error"})
	d := &fakeDialer{sockets: []*fakeSocket{sock}}
	m := newTestManager(d, nil)

	err := m.Connect(context.Background(), "stale-token")
	if !errors.Is(err, ErrHandshakeRejected) {
		t.Fatalf("expected ErrHandshakeRejected, got %v", err)
	}
	if m.State() != Disconnected {
		t.Fatalf("expected Disconnected after rejection, got %v", m.State())
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	sock := newFakeSocket()
	d := &fakeDialer{sockets: []*fakeSocket{sock}, greet: true}
	m := newTestManager(d, nil)

	var falses int
	var fmu sync.Mutex
	m.Notify(func(live bool) {
		if !live {
			fmu.Lock()
			falses++
			fmu.Unlock()
		}
	})

	if err := m.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	m.Disconnect()
	m.Disconnect()
	m.Disconnect()

	if m.State() != Disconnected {
		t.Fatalf("expected Disconnected, got %v", m.State())
	}
	fmu.Lock()
	defer fmu.Unlock()
	if falses != 1 {
		t.Fatalf("expected exactly one live=false transition, got %d", falses)
	}
}

func TestInboundFramesReachBus(t *testing.T) {
	sock := newFakeSocket()
	d := &fakeDialer{sockets: []*fakeSocket{sock}, greet: true}
	bus := event.NewBus()
	m := newTestManager(d, bus)

	var got []string
	var gmu sync.Mutex
	bus.Subscribe(event.EventNewMessage, func(f event.Frame) {
		gmu.Lock()
		got = append(got, f.ID)
		gmu.Unlock()
	})

	if err := m.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	sock.push(event.Frame{Event: event.EventNewMessage, ID: "m1"})

	waitFor(t, func() bool {
		gmu.Lock()
		defer gmu.Unlock()
		return len(got) == 1
	}, "frame routed to bus")
}

func TestNoDeliveryAfterDisconnect(t *testing.T) {
	sock := newFakeSocket()
	d := &fakeDialer{sockets: []*fakeSocket{sock}, greet: true}
	bus := event.NewBus()
	m := newTestManager(d, bus)

	var delivered int
	var dmu sync.Mutex
	bus.Subscribe(event.EventNewMessage, func(event.Frame) {
		dmu.Lock()
		delivered++
		dmu.Unlock()
	})

	if err := m.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	m.Disconnect()

	// A frame already buffered when teardown happens must not be delivered.
	select {
	case sock.inbound <- event.Frame{Event: event.EventNewMessage, ID: "late"}:
	default:
	}
	time.Sleep(50 * time.Millisecond)

	dmu.Lock()
	defer dmu.Unlock()
	if delivered != 0 {
		t.Fatalf("expected no deliveries after disconnect, got %d", delivered)
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	first := newFakeSocket()
	second := newFakeSocket()
	d := &fakeDialer{sockets: []*fakeSocket{first, second}, greet: true}
	m := newTestManager(d, nil)

	if err := m.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Simulated transport drop.
	_ = first.Close()

	waitFor(t, func() bool { return m.Live() }, "reconnected after drop")
	if d.dialCount() != 2 {
		t.Fatalf("expected 2 dials, got %d", d.dialCount())
	}
}

func TestReconnectExhaustionEndsDisconnected(t *testing.T) {
	first := newFakeSocket()
	d := &fakeDialer{sockets: []*fakeSocket{first}, greet: true}
	m := newTestManager(d, nil)

	if err := m.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	_ = first.Close()

	waitFor(t, func() bool { return m.State() == Disconnected }, "retries exhausted")
	// initial dial plus MaxReconnectAttempts failures
	if d.dialCount() != 4 {
		t.Fatalf("expected 4 dials (1 connect + 3 retries), got %d", d.dialCount())
	}
}

func TestDisconnectDuringReconnectStopsRetrying(t *testing.T) {
	first := newFakeSocket()
	d := &fakeDialer{sockets: []*fakeSocket{first}, greet: true, failures: 0}
	m := newTestManager(d, nil)
	block := make(chan struct{})
	m.sleep = func(time.Duration) { <-block }

	if err := m.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	_ = first.Close()

	waitFor(t, func() bool { return m.State() == Connecting }, "drop observed")
	m.Disconnect()
	close(block)

	time.Sleep(50 * time.Millisecond)
	if m.State() != Disconnected {
		t.Fatalf("expected Disconnected, got %v", m.State())
	}
	if d.dialCount() != 1 {
		t.Fatalf("expected no reconnect dials after explicit disconnect, got %d", d.dialCount())
	}
}

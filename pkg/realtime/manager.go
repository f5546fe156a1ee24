// Package realtime maintains the single realtime connection to the
// cryptoless channel, its connected status, the reconnection policy and the
// registry of event subscriptions replayed after every reconnection.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/0xfullStack/Cryptoless/pkg/apierror"
)

// State of the connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

var (
	// ErrNotConnected is returned when sending without an established
	// connection.
	ErrNotConnected = errors.New("realtime channel is not connected")
)

// handler is notified by the Manager about connection level events.
type handler interface {
	// handleConnected runs on every new connection before it is reported as
	// connected and before any inbound frame is delivered.
	handleConnected(epoch uint64, send func([]byte) error) error
	handleFrame(frame Frame)
	// reset runs on explicit Disconnect.
	reset()
}

// Opts defines the parameters needed for creating a Manager with NewManager.
type Opts struct {
	// URL is the http(s) or ws(s) channel endpoint.
	URL string
	// Token is the identity token sent as api_token query parameter.
	Token string
	// Dialer defaults to a WebsocketDialer.
	Dialer Dialer
	// Unreachable makes the network be considered unreachable until
	// SetReachable(true) is called. By default it's considered reachable.
	Unreachable bool
	// AlwaysActive considers the app active on every (re)arming of the
	// reconnection policy, for hosts that never report foreground events.
	AlwaysActive bool
	// NewBackOff returns the delay policy of policy-triggered reconnections.
	// Defaults to a jittered exponential backoff.
	NewBackOff func() backoff.BackOff
	// Registerer, if set, gets the realtime collectors registered.
	Registerer prometheus.Registerer
}

// binding is one arming cycle of the reconnection policy.
type binding struct {
	activated bool
	timer     *time.Timer
}

// Manager owns the realtime connection.
type Manager struct {
	url          string
	dialer       Dialer
	alwaysActive bool

	mu         sync.Mutex
	state      State
	conn       Conn
	epoch      uint64
	attempt    uint64
	cancelDial context.CancelFunc
	reachable  bool
	binding    *binding
	backoff    backoff.BackOff
	handler    handler

	writeMu sync.Mutex
	status  *statusFeed

	reconnects prometheus.Counter
	connected  prometheus.Gauge
}

// NewManager returns a disconnected Manager.
func NewManager(opts Opts) (*Manager, error) {
	if len(opts.URL) <= 0 {
		return nil, apierror.Configuration("missing realtime channel url")
	}
	if len(opts.Token) <= 0 {
		return nil, apierror.Configuration("missing identity token")
	}
	url, err := channelURL(opts.URL, opts.Token)
	if err != nil {
		return nil, apierror.Configuration("invalid realtime channel url: %s", err)
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = WebsocketDialer{WriteTimeout: 10 * time.Second}
	}
	newBackOff := opts.NewBackOff
	if newBackOff == nil {
		newBackOff = defaultBackOff
	}

	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cryptoless",
		Subsystem: "realtime",
		Name:      "reconnects_total",
		Help:      "Number of reconnections triggered by the reconnection policy.",
	})
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cryptoless",
		Subsystem: "realtime",
		Name:      "connected",
		Help:      "1 if the realtime channel is connected.",
	})
	if opts.Registerer != nil {
		reconnects = registerCollector(opts.Registerer, reconnects).(prometheus.Counter)
		connected = registerCollector(opts.Registerer, connected).(prometheus.Gauge)
	}

	return &Manager{
		url:          url,
		dialer:       dialer,
		alwaysActive: opts.AlwaysActive,
		state:        Disconnected,
		reachable:    !opts.Unreachable,
		backoff:      newBackOff(),
		status:       newStatusFeed(),
		reconnects:   reconnects,
		connected:    connected,
	}, nil
}

// Status returns whether the connection is established.
func (m *Manager) Status() bool {
	return m.status.get()
}

// State returns the current state of the connection.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// WatchStatus returns a channel receiving the current connected flag and
// then every change of it, and a function to stop watching.
func (m *Manager) WatchStatus() (<-chan bool, func()) {
	return m.status.watch()
}

// WaitConnected blocks until the connection is established or ctx is done.
func (m *Manager) WaitConnected(ctx context.Context) error {
	ch, stop := m.status.watch()
	defer stop()

	for {
		select {
		case connected := <-ch:
			if connected {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ConnectIfNeeded starts connecting unless already connecting or connected.
func (m *Manager) ConnectIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectLocked()
}

// Disconnect tears down the connection, disposes the reconnection policy and
// drops every subscription. It is idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.disposeBindingLocked()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	// Invalidates any in-flight dial.
	m.attempt++
	conn := m.conn
	m.conn = nil
	if m.state != Disconnected {
		log.Debugf("realtime: %s -> %s", m.state, Disconnected)
	}
	m.state = Disconnected
	m.setStatusLocked(false)
	h := m.handler
	m.mu.Unlock()

	if conn != nil {
		//nolint
		conn.Close()
	}
	if h != nil {
		h.reset()
	}
}

// SetReachable reports the network reachability of the host.
func (m *Manager) SetReachable(reachable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reachable = reachable
	if !reachable && m.binding != nil && m.binding.timer != nil {
		m.binding.timer.Stop()
		m.binding.timer = nil
	}
	m.evaluateLocked()
}

// Activate reports that the app became active.
func (m *Manager) Activate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.binding != nil {
		m.binding.activated = true
	}
	m.evaluateLocked()
}

// Arm replaces the reconnection policy binding with a fresh one. A pending
// reconnection of the previous binding is cancelled, and an activation is
// required again unless the Manager is AlwaysActive.
func (m *Manager) Arm() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disposeBindingLocked()
	m.binding = &binding{activated: m.alwaysActive}
}

func (m *Manager) setHandler(h handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// send writes msg on the established connection.
func (m *Manager) send(msg []byte) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == Connected
	m.mu.Unlock()

	if !connected || conn == nil {
		return apierror.Transport(ErrNotConnected)
	}
	return m.write(conn, msg)
}

func (m *Manager) write(conn Conn, msg []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := conn.WriteMessage(msg); err != nil {
		return apierror.Transport(err)
	}
	return nil
}

func (m *Manager) connectLocked() {
	if m.state != Disconnected {
		return
	}

	log.Debugf("realtime: %s -> %s", m.state, Connecting)
	m.state = Connecting
	m.attempt++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel

	go m.dial(ctx, m.attempt)
}

func (m *Manager) dial(ctx context.Context, attempt uint64) {
	conn, err := m.dialer.Dial(ctx, m.url)

	m.mu.Lock()
	if attempt != m.attempt || m.state != Connecting {
		m.mu.Unlock()
		if conn != nil {
			//nolint
			conn.Close()
		}
		return
	}
	m.cancelDial = nil

	if err != nil {
		log.WithError(err).Warn("realtime: unable to connect")
		m.state = Disconnected
		m.evaluateLocked()
		m.mu.Unlock()
		return
	}

	m.epoch++
	epoch := m.epoch
	m.conn = conn
	h := m.handler
	m.mu.Unlock()

	// Subscriptions are replayed before the connection is reported as
	// connected and before reading, so no inbound frame can precede them.
	if h != nil {
		if err := h.handleConnected(epoch, func(msg []byte) error {
			return m.write(conn, msg)
		}); err != nil {
			m.connectionLost(attempt, conn, err)
			return
		}
	}

	m.mu.Lock()
	if attempt != m.attempt {
		m.mu.Unlock()
		//nolint
		conn.Close()
		return
	}
	log.Debugf("realtime: %s -> %s", m.state, Connected)
	m.state = Connected
	m.backoff.Reset()
	m.setStatusLocked(true)
	m.mu.Unlock()

	go m.listen(attempt, conn)
}

func (m *Manager) listen(attempt uint64, conn Conn) {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			m.connectionLost(attempt, conn, err)
			return
		}

		frame, ok := parseFrame(msg)
		if !ok {
			log.Debugf("realtime: skipping unknown message %s", msg)
			continue
		}

		m.mu.Lock()
		h := m.handler
		m.mu.Unlock()
		if h != nil {
			h.handleFrame(frame)
		}
	}
}

func (m *Manager) connectionLost(attempt uint64, conn Conn, err error) {
	m.mu.Lock()
	if attempt != m.attempt || m.conn != conn {
		m.mu.Unlock()
		return
	}

	log.WithError(err).Warn("realtime: connection dropped unexpectedly")
	m.state = Disconnected
	m.conn = nil
	m.setStatusLocked(false)
	m.evaluateLocked()
	m.mu.Unlock()

	//nolint
	conn.Close()
}

// evaluateLocked schedules a reconnection if the network is reachable, the
// app has been activated on the current binding and the connection is down.
func (m *Manager) evaluateLocked() {
	b := m.binding
	if b == nil || b.timer != nil {
		return
	}
	if !m.reachable || !b.activated || m.state != Disconnected {
		return
	}

	delay := m.backoff.NextBackOff()
	if delay == backoff.Stop {
		log.Warn("realtime: giving up reconnecting")
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.binding != b || b.timer != timer {
			return
		}
		b.timer = nil
		if m.reachable && b.activated && m.state == Disconnected {
			m.reconnects.Inc()
			m.connectLocked()
		}
	})
	b.timer = timer
}

func (m *Manager) disposeBindingLocked() {
	if m.binding != nil && m.binding.timer != nil {
		m.binding.timer.Stop()
		m.binding.timer = nil
	}
	m.binding = nil
}

func (m *Manager) setStatusLocked(connected bool) {
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
	m.status.publish(connected)
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.RandomizationFactor = 0.5
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

func registerCollector(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
	}
	return c
}

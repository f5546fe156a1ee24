package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

var holders = NewEvent("holders")

func TestConnectIfNeededIsIdempotent(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, Opts{})

	m.ConnectIfNeeded()
	m.ConnectIfNeeded()
	require.Equal(t, Connecting, m.State())

	dialer.conns <- newFakeConn()
	require.Eventually(t, m.Status, waitFor, tick)
	m.ConnectIfNeeded()

	require.Equal(t, Connected, m.State())
	require.Equal(t, 1, dialer.count())
}

func TestSubscribe(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, Opts{})
	r := NewRegistry(m, 0)

	conn := newFakeConn()
	dialer.conns <- conn

	stream, err := r.Subscribe(context.Background(), holders)
	require.NoError(t, err)
	require.Equal(t, []string{"holders"}, r.Subscriptions())

	msg := conn.next(t)
	require.Equal(t, "subscribe", msg.Event)
	frame := decodeControlFrame(t, msg)
	require.Equal(t, []string{"holders"}, frame.Scope)
	require.NotEmpty(t, frame.ID)
	require.Empty(t, frame.Payload)
	// No duplicate frame for the subscription replayed on connection.
	require.Len(t, conn.out, 0)

	conn.in <- []byte(`{"event":"receive instructions","id":"a","data":{"data":[]}}`)
	conn.in <- []byte(`{"event":"receive holders","id":"b","data":{"data":[{"id":"1"}]}}`)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	got, err := stream.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "b", got.ID)
	require.Equal(t, "holders", got.Scope)
	require.Equal(t, "receive holders", got.Key)

	var items []map[string]string
	require.NoError(t, got.Decode(&items))
	require.Equal(t, []map[string]string{{"id": "1"}}, items)

	// A second subscribe call for the same event sends the frame again.
	_, err = r.Subscribe(context.Background(), holders)
	require.NoError(t, err)
	require.Equal(t, "subscribe", conn.next(t).Event)
}

func TestSubscribeTimeoutDropsSubscription(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, Opts{})
	r := NewRegistry(m, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := r.Subscribe(ctx, holders)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, r.Subscriptions())

	// The pending dial completes later, nothing is replayed.
	conn := newFakeConn()
	dialer.conns <- conn
	require.Eventually(t, m.Status, waitFor, tick)
	require.Never(t, func() bool { return len(conn.out) > 0 }, 100*time.Millisecond, tick)
}

func TestSubscribeInterruptedByDisconnect(t *testing.T) {
	dialer := newFakeDialer()
	dialer.failures = 1
	m := newTestManager(t, dialer, Opts{})
	r := NewRegistry(m, 0)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	errc := make(chan error, 1)
	go func() {
		_, err := r.Subscribe(ctx, holders)
		errc <- err
	}()

	// The first dial fails and, without activation, is not retried.
	require.Eventually(t, func() bool {
		return dialer.count() == 1 && m.State() == Disconnected &&
			len(r.Subscriptions()) == 1
	}, waitFor, tick)

	m.Disconnect()
	require.Empty(t, r.Subscriptions())

	conn := newFakeConn()
	dialer.conns <- conn
	m.ConnectIfNeeded()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrStreamClosed)
	case <-ctx.Done():
		t.Fatal("subscribe did not return")
	}
	require.True(t, m.Status())
	require.Empty(t, r.Subscriptions())
	require.Len(t, conn.out, 0)
}

func TestResubscribeOnReconnection(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, Opts{AlwaysActive: true})
	r := NewRegistry(m, 0)

	first := newFakeConn()
	dialer.conns <- first
	stream, err := r.Subscribe(context.Background(), holders)
	require.NoError(t, err)
	require.Equal(t, "subscribe", first.next(t).Event)

	second := newFakeConn()
	dialer.conns <- second
	//nolint
	first.Close()

	msg := second.next(t)
	require.Equal(t, "subscribe", msg.Event)
	require.Equal(t, []string{"holders"}, decodeControlFrame(t, msg).Scope)
	require.Eventually(t, m.Status, waitFor, tick)
	require.Equal(t, 2, dialer.count())

	second.in <- []byte(`{"event":"receive holders","id":"c","data":{"data":[]}}`)
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	got, err := stream.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "c", got.ID)
}

func TestReconnectionPolicy(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, Opts{Unreachable: true})
	r := NewRegistry(m, 0)

	first := newFakeConn()
	dialer.conns <- first
	_, err := r.Subscribe(context.Background(), holders)
	require.NoError(t, err)

	//nolint
	first.Close()
	require.Eventually(t, func() bool { return !m.Status() }, waitFor, tick)

	// Neither activation nor reachability alone trigger a reconnection.
	m.Activate()
	require.Never(t, func() bool { return dialer.count() > 1 }, 100*time.Millisecond, tick)

	m.SetReachable(true)
	require.Eventually(t, func() bool { return dialer.count() == 2 }, waitFor, tick)
	require.Equal(t, Connecting, m.State())

	// Repeated pulses while connecting are no-ops.
	m.SetReachable(true)
	m.Activate()
	m.SetReachable(true)
	require.Never(t, func() bool { return dialer.count() > 2 }, 100*time.Millisecond, tick)

	dialer.conns <- newFakeConn()
	require.Eventually(t, m.Status, waitFor, tick)

	m.SetReachable(true)
	m.Activate()
	require.Never(t, func() bool { return dialer.count() > 2 }, 100*time.Millisecond, tick)
}

func TestRearmRequiresActivation(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, Opts{})
	r := NewRegistry(m, 0)

	first := newFakeConn()
	dialer.conns <- first
	_, err := r.Subscribe(context.Background(), holders)
	require.NoError(t, err)
	m.Activate()

	// Unsubscribing re-arms the policy, dropping the previous activation.
	require.NoError(t, r.Unsubscribe(context.Background(), NewEvent("instructions")))
	//nolint
	first.Close()
	require.Never(t, func() bool { return dialer.count() > 1 }, 100*time.Millisecond, tick)

	m.Activate()
	require.Eventually(t, func() bool { return dialer.count() == 2 }, waitFor, tick)
}

func TestFailedDialIsRetried(t *testing.T) {
	dialer := newFakeDialer()
	dialer.failures = 2
	m := newTestManager(t, dialer, Opts{AlwaysActive: true})
	r := NewRegistry(m, 0)

	dialer.conns <- newFakeConn()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	_, err := r.Subscribe(ctx, holders)
	require.NoError(t, err)
	require.Equal(t, 3, dialer.count())
}

func TestDisconnect(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, Opts{AlwaysActive: true})
	r := NewRegistry(m, 0)

	conn := newFakeConn()
	dialer.conns <- conn
	stream, err := r.Subscribe(context.Background(), holders)
	require.NoError(t, err)
	conn.next(t)

	status, stop := m.WatchStatus()
	defer stop()
	require.True(t, <-status)

	m.Disconnect()
	m.Disconnect()

	require.False(t, <-status)
	require.False(t, m.Status())
	require.Equal(t, Disconnected, m.State())
	require.Empty(t, r.Subscriptions())

	_, err = stream.Next(context.Background())
	require.ErrorIs(t, err, ErrStreamClosed)

	// The policy binding is disposed, nothing reconnects.
	require.Never(t, func() bool { return dialer.count() > 1 }, 100*time.Millisecond, tick)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = r.Unsubscribe(ctx, holders)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, conn.out, 0)
}

func TestUnsubscribe(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, Opts{})
	r := NewRegistry(m, 0)

	conn := newFakeConn()
	dialer.conns <- conn
	m.ConnectIfNeeded()
	require.Eventually(t, m.Status, waitFor, tick)

	// Never subscribed.
	require.NoError(t, r.Unsubscribe(context.Background(), holders))
	msg := conn.next(t)
	require.Equal(t, "unsubscribe", msg.Event)
	require.Equal(t, []string{"holders"}, decodeControlFrame(t, msg).Scope)

	stream, err := r.Subscribe(context.Background(), holders)
	require.NoError(t, err)
	require.Equal(t, "subscribe", conn.next(t).Event)

	require.NoError(t, r.Unsubscribe(context.Background(), holders))
	require.Equal(t, "unsubscribe", conn.next(t).Event)
	require.Empty(t, r.Subscriptions())

	_, ok := <-stream.Frames()
	require.False(t, ok)
}

func TestStreamClose(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer, Opts{})
	r := NewRegistry(m, 1)

	conn := newFakeConn()
	dialer.conns <- conn
	first, err := r.Subscribe(context.Background(), holders)
	require.NoError(t, err)
	second, err := r.Subscribe(context.Background(), holders)
	require.NoError(t, err)

	first.Close()
	conn.in <- []byte(`{"event":"receive holders","id":"1","data":{"data":[]}}`)
	conn.in <- []byte(`{"event":"receive holders","id":"2","data":{"data":[]}}`)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	got, err := second.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "1", got.ID)

	_, err = first.Next(ctx)
	require.ErrorIs(t, err, ErrStreamClosed)
	// Closing a stream does not notify the server.
	require.Equal(t, []string{"holders"}, r.Subscriptions())
}

func TestSubscribeInvalidEvent(t *testing.T) {
	m := newTestManager(t, newFakeDialer(), Opts{})
	r := NewRegistry(m, 0)

	_, err := r.Subscribe(context.Background(), Event{})
	require.Error(t, err)
	require.Error(t, r.Unsubscribe(context.Background(), Event{}))
}

func TestNewManagerInvalidOpts(t *testing.T) {
	tests := []struct {
		name string
		opts Opts
	}{
		{"missing url", Opts{Token: "token"}},
		{"missing token", Opts{URL: "https://connect.cryptoless.net"}},
		{"invalid url", Opts{URL: "://", Token: "token"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.opts)
			require.Error(t, err)
		})
	}
}

func newTestManager(t *testing.T, dialer Dialer, opts Opts) *Manager {
	t.Helper()

	opts.URL = "https://connect.cryptoless.net"
	opts.Token = "token"
	opts.Dialer = dialer
	opts.NewBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	m, err := NewManager(opts)
	require.NoError(t, err)
	t.Cleanup(m.Disconnect)
	return m
}

func decodeControlFrame(t *testing.T, msg message) ControlFrame {
	t.Helper()

	var frame ControlFrame
	require.NoError(t, json.Unmarshal(msg.Data, &frame))
	return frame
}

type fakeDialer struct {
	mu       sync.Mutex
	dials    int
	failures int
	conns    chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 4)}
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	if d.failures > 0 {
		d.failures--
		d.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	d.mu.Unlock()

	select {
	case conn := <-d.conns:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type fakeConn struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:   make(chan []byte, 16),
		out:  make(chan []byte, 16),
		done: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.done:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(msg []byte) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}
	c.out <- msg
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) next(t *testing.T) message {
	t.Helper()

	select {
	case buf := <-c.out:
		var msg message
		require.NoError(t, json.Unmarshal(buf, &msg))
		return msg
	case <-time.After(waitFor):
		t.Fatal("timeout waiting for outbound message")
		return message{}
	}
}

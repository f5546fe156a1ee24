package realtime

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/0xfullStack/Cryptoless/pkg/apierror"
)

// DefaultStreamBuffer is the number of frames a Stream holds before new ones
// are dropped.
const DefaultStreamBuffer = 64

var (
	// ErrStreamClosed is returned by Stream.Next once the stream is closed.
	ErrStreamClosed = errors.New("stream closed")
)

type subscription struct {
	event   Event
	streams map[*Stream]struct{}
}

// Registry tracks the subscribed events of a Manager's connection. Active
// subscriptions are sent again every time the connection is established.
type Registry struct {
	manager    *Manager
	bufferSize int

	mu   sync.Mutex
	subs map[string]*subscription
}

// NewRegistry returns a Registry bound to manager. A non positive bufferSize
// falls back to DefaultStreamBuffer.
func NewRegistry(manager *Manager, bufferSize int) *Registry {
	if bufferSize <= 0 {
		bufferSize = DefaultStreamBuffer
	}
	r := &Registry{
		manager:    manager,
		bufferSize: bufferSize,
		subs:       make(map[string]*subscription),
	}
	manager.setHandler(r)
	return r
}

// Subscribe records the interest for event, connects if needed and, once
// connected, sends the subscribe frame. The returned Stream delivers every
// frame received for the event until Unsubscribe, Disconnect or Stream.Close.
//
// A failing send does not abort the subscription: the frame is sent again as
// soon as the connection is re-established. If ctx is done before connecting,
// the subscription is dropped. ErrStreamClosed is returned and nothing is sent
// if Disconnect or Unsubscribe run while waiting for the connection.
func (r *Registry) Subscribe(ctx context.Context, event Event) (*Stream, error) {
	if len(event.Scope) <= 0 {
		return nil, apierror.Configuration("missing event scope")
	}
	msg, err := newControlMessage(ActionSubscribe, event)
	if err != nil {
		return nil, apierror.Configuration("invalid event payload: %s", err)
	}

	r.manager.Arm()

	stream := newStream(r, event.KeyPath(), r.bufferSize)
	r.mu.Lock()
	sub, ok := r.subs[stream.key]
	if !ok {
		sub = &subscription{event: event, streams: make(map[*Stream]struct{})}
		r.subs[stream.key] = sub
	}
	created := !ok
	sub.event = event
	sub.streams[stream] = struct{}{}
	stream.pending = true
	r.mu.Unlock()

	r.manager.ConnectIfNeeded()
	if err := r.manager.WaitConnected(ctx); err != nil {
		r.abort(stream, sub, created)
		return nil, err
	}

	// The frame may already have been sent while establishing the connection.
	// The stream is gone if Disconnect or Unsubscribe ran in the meantime.
	r.mu.Lock()
	registered := r.isRegisteredLocked(stream, sub)
	pending := stream.pending
	stream.pending = false
	r.mu.Unlock()
	if !registered {
		stream.close()
		return nil, ErrStreamClosed
	}
	if !pending {
		return stream, nil
	}

	if err := r.manager.send(msg); err != nil {
		log.WithError(err).Warnf(
			"realtime: failed to subscribe to %s, retrying on reconnection", event.Scope,
		)
	}
	return stream, nil
}

// Unsubscribe drops the interest for event, closes its streams and, once
// connected, sends the unsubscribe frame. It does not start connecting by
// itself. Unsubscribing from an event never subscribed just sends the frame.
func (r *Registry) Unsubscribe(ctx context.Context, event Event) error {
	if len(event.Scope) <= 0 {
		return apierror.Configuration("missing event scope")
	}
	msg, err := newControlMessage(ActionUnsubscribe, event)
	if err != nil {
		return apierror.Configuration("invalid event payload: %s", err)
	}

	r.manager.Arm()

	r.mu.Lock()
	sub, ok := r.subs[event.KeyPath()]
	delete(r.subs, event.KeyPath())
	r.mu.Unlock()
	if ok {
		for s := range sub.streams {
			s.close()
		}
	}

	if err := r.manager.WaitConnected(ctx); err != nil {
		return err
	}
	return r.manager.send(msg)
}

// Subscriptions returns the scopes currently subscribed.
func (r *Registry) Subscriptions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	scopes := make([]string, 0, len(r.subs))
	for _, sub := range r.subs {
		scopes = append(scopes, sub.event.Scope)
	}
	return scopes
}

func (r *Registry) handleConnected(epoch uint64, send func([]byte) error) error {
	r.mu.Lock()
	events := make([]Event, 0, len(r.subs))
	for _, sub := range r.subs {
		events = append(events, sub.event)
		for s := range sub.streams {
			s.pending = false
		}
	}
	r.mu.Unlock()

	for _, event := range events {
		msg, err := newControlMessage(ActionSubscribe, event)
		if err != nil {
			return err
		}
		if err := send(msg); err != nil {
			return err
		}
		log.Debugf("realtime: resubscribed to %s on connection %d", event.Scope, epoch)
	}
	return nil
}

func (r *Registry) handleFrame(frame Frame) {
	r.mu.Lock()
	sub, ok := r.subs[frame.Key]
	var streams []*Stream
	if ok {
		streams = make([]*Stream, 0, len(sub.streams))
		for s := range sub.streams {
			streams = append(streams, s)
		}
	}
	r.mu.Unlock()

	for _, s := range streams {
		if !s.deliver(frame) {
			log.Warnf("realtime: stream for %s is full, dropping frame %s", frame.Scope, frame.ID)
		}
	}
}

func (r *Registry) reset() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]*subscription)
	r.mu.Unlock()

	for _, sub := range subs {
		for s := range sub.streams {
			s.close()
		}
	}
}

// abort drops the stream of a failed Subscribe, along with its subscription
// if that call created it and no other stream was added since.
func (r *Registry) abort(s *Stream, sub *subscription, created bool) {
	r.mu.Lock()
	delete(sub.streams, s)
	if created && len(sub.streams) <= 0 && r.subs[s.key] == sub {
		delete(r.subs, s.key)
	}
	r.mu.Unlock()

	s.close()
}

func (r *Registry) isRegisteredLocked(s *Stream, sub *subscription) bool {
	if r.subs[s.key] != sub {
		return false
	}
	_, ok := sub.streams[s]
	return ok
}

func (r *Registry) remove(s *Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[s.key]
	if !ok {
		return
	}
	delete(sub.streams, s)
}

// Stream delivers the frames of one subscribed event.
type Stream struct {
	registry *Registry
	key      string
	// pending is true until the subscribe frame of the stream is sent.
	// Guarded by the registry lock.
	pending  bool

	mu     sync.Mutex
	closed bool
	ch     chan Frame
}

func newStream(r *Registry, key string, size int) *Stream {
	return &Stream{registry: r, key: key, ch: make(chan Frame, size)}
}

// Frames returns the channel of frames, closed when the stream is closed.
func (s *Stream) Frames() <-chan Frame {
	return s.ch
}

// Next blocks until a frame is received, the stream is closed or ctx is done.
func (s *Stream) Next(ctx context.Context) (Frame, error) {
	select {
	case frame, ok := <-s.ch:
		if !ok {
			return Frame{}, ErrStreamClosed
		}
		return frame, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Close stops the local delivery of frames. The server is not notified, use
// Registry.Unsubscribe for that. The subscription itself stays registered,
// so it is still replayed on reconnection.
func (s *Stream) Close() {
	s.registry.remove(s)
	s.close()
}

func (s *Stream) deliver(frame Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true
	}
	select {
	case s.ch <- frame:
		return true
	default:
		return false
	}
}

func (s *Stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

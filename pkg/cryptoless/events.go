package cryptoless

import (
	"context"

	"github.com/0xfullStack/Cryptoless/pkg/realtime"
)

var (
	// HoldersEvent delivers the balances changed since the subscription.
	HoldersEvent = realtime.NewEvent("holders")
	// InstructionsEvent delivers the instructions changed since the
	// subscription.
	InstructionsEvent = realtime.NewEvent("instructions")
)

// ConnectionStatus returns whether the realtime channel is connected.
func (c *Client) ConnectionStatus() bool {
	return c.manager.Status()
}

// WatchConnectionStatus returns a channel receiving the current connection
// status and every change of it, and the function to stop watching.
func (c *Client) WatchConnectionStatus() (<-chan bool, func()) {
	return c.manager.WatchStatus()
}

// Connect starts connecting the realtime channel unless already connecting
// or connected.
func (c *Client) Connect() {
	c.manager.ConnectIfNeeded()
}

// Disconnect closes the realtime channel and drops every subscription.
func (c *Client) Disconnect() {
	c.manager.Disconnect()
}

// SetReachable reports the network reachability of the host.
func (c *Client) SetReachable(reachable bool) {
	c.manager.SetReachable(reachable)
}

// Activate reports that the host app became active.
func (c *Client) Activate() {
	c.manager.Activate()
}

// Subscribe subscribes to event, see realtime.Registry.Subscribe.
func (c *Client) Subscribe(ctx context.Context, event realtime.Event) (*realtime.Stream, error) {
	return c.registry.Subscribe(ctx, event)
}

// Unsubscribe unsubscribes from event, see realtime.Registry.Unsubscribe.
func (c *Client) Unsubscribe(ctx context.Context, event realtime.Event) error {
	return c.registry.Unsubscribe(ctx, event)
}

// HoldersStream is the stream of HoldersEvent.
type HoldersStream struct {
	*realtime.Stream
}

// Next returns the holders of the next frame.
func (s HoldersStream) Next(ctx context.Context) ([]Holder, error) {
	frame, err := s.Stream.Next(ctx)
	if err != nil {
		return nil, err
	}
	var holders []Holder
	if err := frame.Decode(&holders); err != nil {
		return nil, err
	}
	return holders, nil
}

// SubscribeHolders subscribes to HoldersEvent.
func (c *Client) SubscribeHolders(ctx context.Context) (HoldersStream, error) {
	stream, err := c.Subscribe(ctx, HoldersEvent)
	if err != nil {
		return HoldersStream{}, err
	}
	return HoldersStream{stream}, nil
}

// InstructionsStream is the stream of InstructionsEvent.
type InstructionsStream struct {
	*realtime.Stream
}

// Next returns the instructions of the next frame.
func (s InstructionsStream) Next(ctx context.Context) ([]Instruction, error) {
	frame, err := s.Stream.Next(ctx)
	if err != nil {
		return nil, err
	}
	var instructions []Instruction
	if err := frame.Decode(&instructions); err != nil {
		return nil, err
	}
	return instructions, nil
}

// SubscribeInstructions subscribes to InstructionsEvent.
func (c *Client) SubscribeInstructions(ctx context.Context) (InstructionsStream, error) {
	stream, err := c.Subscribe(ctx, InstructionsEvent)
	if err != nil {
		return InstructionsStream{}, err
	}
	return InstructionsStream{stream}, nil
}

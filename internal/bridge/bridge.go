// Package bridge exposes the host application's page controls to the
// server side. Core logic depends only on HostBridge, so it runs without a
// host present.
package bridge

import (
	"context"
	"errors"

	"github.com/tuneedit/api/internal/model"
)

// ErrNotAttached means no page is listening on the session.
var ErrNotAttached = errors.New("no page attached to session")

// HostBridge is the capability to drive the host's viewport.
type HostBridge interface {
	Expand(ctx context.Context, sessionID string) error
	Close(ctx context.Context, sessionID string) error
}

// Broadcaster pushes a bridge command to the pages of a session.
type Broadcaster interface {
	BroadcastBridge(sessionID, command string)
	ClientCount(sessionID string) int
}

// HubBridge relays commands over the session websocket.
type HubBridge struct {
	hub Broadcaster
}

func NewHubBridge(hub Broadcaster) *HubBridge {
	return &HubBridge{hub: hub}
}

func (b *HubBridge) Expand(ctx context.Context, sessionID string) error {
	return b.dispatch(ctx, sessionID, model.BridgeCommandExpand)
}

func (b *HubBridge) Close(ctx context.Context, sessionID string) error {
	return b.dispatch(ctx, sessionID, model.BridgeCommandClose)
}

func (b *HubBridge) dispatch(ctx context.Context, sessionID, command string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.hub.ClientCount(sessionID) == 0 {
		return ErrNotAttached
	}
	b.hub.BroadcastBridge(sessionID, command)
	return nil
}

// Noop does nothing. It stands in when no host is present, e.g. in tests.
type Noop struct{}

func (Noop) Expand(context.Context, string) error { return nil }
func (Noop) Close(context.Context, string) error  { return nil }

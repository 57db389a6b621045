// Package presence keeps the process-local map of connected accounts.
// The last connection of an account wins; a stale connection closing late
// never evicts the one that replaced it.
package presence

import (
	"context"
	"slices"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/linkup-dev/linkup/internal/domain"
	"github.com/linkup-dev/linkup/internal/logger"
	"github.com/linkup-dev/linkup/internal/metrics"
	"github.com/puzpuzpuz/xsync/v3"
)

// Client is one live connection of an account.
type Client struct {
	conn *websocket.Conn
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// Event is the envelope pushed to connected clients.
type Event struct {
	Type string `json:"type"`
	From domain.AccountId `json:"from,omitempty"`
}

const defaultWriteTimeout = 2 * time.Second

type Registry struct {
	clients      *xsync.MapOf[domain.AccountId, *Client]
	writeTimeout time.Duration
	dispatch     func(func())
}

type Option func(*Registry)

// WithWriteTimeout bounds a single event write to a peer.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// WithDispatcher replaces the goroutine launcher used for follow events.
func WithDispatcher(dispatch func(func())) Option {
	return func(r *Registry) {
		if dispatch != nil {
			r.dispatch = dispatch
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		clients:      xsync.NewMapOf[domain.AccountId, *Client](),
		writeTimeout: defaultWriteTimeout,
		dispatch:     func(f func()) { go f() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers c for id and returns the connection it replaced, if any.
func (r *Registry) Connect(id domain.AccountId, c *Client) (*Client, bool) {
	prev, loaded := r.clients.LoadAndStore(id, c)
	if !loaded {
		metrics.PresenceConnections.Inc()
	}
	return prev, loaded
}

// Disconnect removes id only while it is still mapped to c.
func (r *Registry) Disconnect(id domain.AccountId, c *Client) bool {
	removed := false
	r.clients.Compute(id, func(cur *Client, loaded bool) (*Client, bool) {
		if !loaded {
			return nil, true
		}
		if cur != c {
			return cur, false
		}
		removed = true
		return nil, true
	})
	if removed {
		metrics.PresenceConnections.Dec()
	}
	return removed
}

func (r *Registry) Lookup(id domain.AccountId) (*Client, bool) {
	return r.clients.Load(id)
}

// Online returns the connected account ids in ascending order.
func (r *Registry) Online() []domain.AccountId {
	ids := make([]domain.AccountId, 0, r.clients.Size())
	r.clients.Range(func(id domain.AccountId, _ *Client) bool {
		ids = append(ids, id)
		return true
	})
	slices.Sort(ids)
	return ids
}

func (r *Registry) Len() int {
	return r.clients.Size()
}

// Clear drops every entry. Used on shutdown.
func (r *Registry) Clear() {
	r.clients.Range(func(id domain.AccountId, c *Client) bool {
		r.Disconnect(id, c)
		return true
	})
}

// Publish pushes event to the account if it is connected. Delivery is best effort:
// offline recipients and write failures are not errors for the caller. The write
// outlives ctx but never the write timeout.
func (r *Registry) Publish(ctx context.Context, to domain.AccountId, event Event) {
	c, ok := r.clients.Load(to)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, c.conn, event); err != nil {
		logger.Log.Debug("presence publish failed", "account_id", to, "type", event.Type, "error", err)
	}
}

const (
	EventFollowRequested = "follow_requested"
	EventFollowAccepted  = "follow_accepted"
)

// FollowRequested notifies the owner that follower asked to follow them.
// It returns before the event is written.
func (r *Registry) FollowRequested(ctx context.Context, owner, follower domain.AccountId) {
	r.dispatch(func() { r.Publish(ctx, owner, Event{Type: EventFollowRequested, From: follower}) })
}

// FollowAccepted notifies the follower that owner accepted the request.
func (r *Registry) FollowAccepted(ctx context.Context, owner, follower domain.AccountId) {
	r.dispatch(func() { r.Publish(ctx, follower, Event{Type: EventFollowAccepted, From: owner}) })
}

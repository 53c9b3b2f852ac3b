// Package reconcile merges push events, periodic full refreshes, and local
// optimistic mutations into one
// consistent in-memory view with a derived unread count.
package reconcile

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/boardsync/boardsync/internal/api"
	"github.com/boardsync/boardsync/internal/event"
	"github.com/boardsync/boardsync/internal/logging"
	"github.com/boardsync/boardsync/internal/metrics"
	"github.com/boardsync/boardsync/internal/model"
	"github.com/rs/zerolog"
)

// Backend is the slice of the HTTP collaborator the reconciler drives.
// Satisfied by *api.Client; tests inject fakes.
type Backend interface {
	FetchNotifications(ctx context.Context, limit int) (*api.NotificationPage, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	AcceptInvitation(ctx context.Context, invitationID string) error
	RejectInvitation(ctx context.Context, invitationID string) error
}

// Options configures a Reconciler.
type Options struct {
	Backend Backend
	// Bus delivers push notification frames; may be nil when running
	// poll-only.
	Bus *event.Bus
	// PollInterval is the period of the full refresh.
	PollInterval time.Duration
	// FetchLimit is the number of entries requested per refresh.
	FetchLimit int
}

// Reconciler owns the canonical notification set. All four write sources
// (poll, mark-read, mark-all-read, invitation response) run concurrently;
// each funnels through the store's single update entry point, so the last
// write to complete wins. Mutation failures are logged, never surfaced:
// the worst outcome is staleness bounded by the poll interval.
type Reconciler struct {
	opts  Options
	store *Store
	log   zerolog.Logger

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup // tracks in-flight reconciliation passes
	sub      *event.Subscription

	Now func() time.Time // injectable clock for testing
}

// New wires a reconciler to its backend and, when a bus is given,
// subscribes to push-delivered notification frames.
func New(opts Options) *Reconciler {
	r := &Reconciler{
		opts:  opts,
		store: NewStore(),
		log:   logging.Component("reconcile"),
		quit:  make(chan struct{}),
		Now:   time.Now,
	}
	if opts.Bus != nil {
		r.sub = opts.Bus.Subscribe(event.EventNotification, r.handleNotificationFrame)
	}
	return r
}

// Snapshot returns the current view. This is the single read accessor; the
// UI layer consumes it and nothing else.
func (r *Reconciler) Snapshot() Snapshot {
	return r.store.Snapshot()
}

// Start runs the poll loop: an immediate refresh so consumers don't wait
// for the first tick, then one full refresh per interval until Stop.
func (r *Reconciler) Start() {
	r.log.Info().Dur("interval", r.opts.PollInterval).Msg("starting notification poll loop")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Refresh(context.Background())
	}()

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.wg.Add(1)
			r.Refresh(context.Background())
			r.wg.Done()
		case <-r.quit:
			r.log.Info().Msg("stopping notification poll loop")
			return
		}
	}
}

// Stop cancels the poll timer, detaches the push subscription, and waits
// for in-flight passes to finish or the context to expire. Operations are
// never cancelled mid-flight; they run to completion and are simply no
// longer observed.
func (r *Reconciler) Stop(ctx context.Context) {
	r.stopOnce.Do(func() { close(r.quit) })
	if r.sub != nil {
		r.sub.Cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.log.Warn().Msg("shutdown timeout exceeded, reconciliation pass still in flight")
	}
}

// Refresh performs one full poll: fetch the latest window plus the
// authoritative unread count and replace the view wholesale. Failures are
// logged and left for the next tick.
func (r *Reconciler) Refresh(ctx context.Context) {
	page, err := r.opts.Backend.FetchNotifications(ctx, r.opts.FetchLimit)
	if err != nil {
		metrics.IncPollFailure()
		r.log.Warn().Err(err).Msg("notification refresh failed")
		return
	}
	r.store.ReplaceFromPoll(page.Notifications, page.UnreadCount)
	metrics.IncPollSuccess()
	metrics.SetUnread(page.UnreadCount)
	metrics.SetLastPoll(r.Now())
	r.log.Debug().Int("count", len(page.Notifications)).Int("unread", page.UnreadCount).Msg("notification view refreshed")
}

// MarkRead optimistically flips one notification to read, so the unread
// count updates before the network round trip, and then tells the server. A
// failed server call is not rolled back; the next poll corrects any drift.
func (r *Reconciler) MarkRead(ctx context.Context, id string) {
	if r.store.MarkRead(id) {
		metrics.IncMarkRead()
		metrics.SetUnread(r.store.Unread())
	}
	if err := r.opts.Backend.MarkNotificationRead(ctx, id); err != nil {
		r.log.Warn().Err(err).Str("notification", id).Msg("server mark-read failed, keeping optimistic state")
	}
}

// MarkAllRead runs the server bulk operation and then forces an immediate
// refresh instead of flipping visible entries in place: the on-screen set
// may be a strict subset of what is unread server-side. A failed bulk call
// leaves local state untouched and triggers no refresh.
func (r *Reconciler) MarkAllRead(ctx context.Context) {
	if err := r.opts.Backend.MarkAllNotificationsRead(ctx); err != nil {
		r.log.Warn().Err(err).Msg("mark-all-read failed")
		return
	}
	r.Refresh(ctx)
}

// AcceptInvitation accepts the invite behind a notification, marks the
// notification read, and forces a refresh. A failed accept aborts the
// remaining steps so the notification never goes read for an invitation
// that was not actually accepted.
func (r *Reconciler) AcceptInvitation(ctx context.Context, notificationID, invitationID string) {
	r.respondInvitation(ctx, notificationID, invitationID, "accept", r.opts.Backend.AcceptInvitation)
}

// RejectInvitation is the reject counterpart of AcceptInvitation, with the
// same abort-on-failure ordering.
func (r *Reconciler) RejectInvitation(ctx context.Context, notificationID, invitationID string) {
	r.respondInvitation(ctx, notificationID, invitationID, "reject", r.opts.Backend.RejectInvitation)
}

func (r *Reconciler) respondInvitation(ctx context.Context, notificationID, invitationID, action string, call func(context.Context, string) error) {
	if err := call(ctx, invitationID); err != nil {
		r.log.Warn().Err(err).Str("invitation", invitationID).Str("action", action).Msg("invitation response failed")
		return
	}
	metrics.IncInvitationResponse(action)
	r.MarkRead(ctx, notificationID)
	r.Refresh(ctx)
}

// handleNotificationFrame merges a push-delivered notification into the view.
func (r *Reconciler) handleNotificationFrame(f event.Frame) {
	var n model.Notification
	if err := json.Unmarshal(f.Payload, &n); err != nil {
		r.log.Warn().Err(err).Msg("malformed notification frame")
		return
	}
	if n.ID == "" {
		return
	}
	r.store.Upsert(n)
	metrics.SetUnread(r.store.Unread())
	r.log.Debug().Str("notification", n.ID).Str("type", n.Type).Msg("push notification merged")
}

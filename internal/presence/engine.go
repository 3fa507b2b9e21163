// Package presence tracks user availability and demotes idle users.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
)

// PeerResolver lists the users interested in someone's presence.
type PeerResolver interface {
	PeersOf(ctx context.Context, userID int64) ([]int64, error)
}

// Notifier delivers a payload to every live connection of a user.
type Notifier interface {
	Send(userID int64, payload []byte) int
}

// Transition is one applied status change.
type Transition struct {
	UserID int64
	From   models.PresenceStatus
	To     models.PresenceStatus
	At     time.Time
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine applies presence transitions and publishes them to peers.
type Engine struct {
	store    Store
	peers    PeerResolver
	notifier Notifier
	idle     time.Duration
	now      func() time.Time
	logger   *zap.Logger
	// held across Update and publish so peers see a user's events in commit order
	locks *userLocks
}

func NewEngine(store Store, peers PeerResolver, notifier Notifier, idleThreshold time.Duration, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		peers:    peers,
		notifier: notifier,
		idle:     idleThreshold,
		now:      time.Now,
		logger:   zap.NewNop(),
		locks:    newUserLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Get returns the stored record of a user.
func (e *Engine) Get(ctx context.Context, userID int64) (models.PresenceState, error) {
	return e.store.Get(ctx, userID)
}

// Sweep demotes every ONLINE user idle for longer than the threshold. Candidates
// come from a snapshot; each one is re-checked inside its own atomic update so a
// concurrent Touch always wins.
func (e *Engine) Sweep(ctx context.Context) ([]Transition, error) {
	states, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var (
		applied []Transition
		errs    []error
	)
	for _, st := range states {
		if !e.idleAt(st, now) {
			continue
		}
		tr, ok, err := e.apply(ctx, st.UserID, func(cur models.PresenceState, found bool) (models.PresenceState, bool) {
			if !found || !e.idleAt(cur, now) {
				return cur, false
			}
			cur.Status = models.StatusAway
			return cur, true
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			applied = append(applied, tr)
		}
	}
	return applied, errors.Join(errs...)
}

func (e *Engine) idleAt(st models.PresenceState, now time.Time) bool {
	return st.Status == models.StatusOnline && now.Sub(st.LastActivityAt) > e.idle
}

// Touch records activity. An AWAY user comes back ONLINE; other statuses only
// refresh their timestamp. Unknown users are ignored.
func (e *Engine) Touch(ctx context.Context, userID int64) error {
	now := e.now()
	_, _, err := e.apply(ctx, userID, func(cur models.PresenceState, found bool) (models.PresenceState, bool) {
		if !found {
			return cur, false
		}
		cur.LastActivityAt = latest(cur.LastActivityAt, now)
		if cur.Status == models.StatusAway {
			cur.Status = models.StatusOnline
		}
		return cur, true
	})
	return err
}

// Connected is called when a user's first connection registers.
func (e *Engine) Connected(ctx context.Context, userID int64) error {
	now := e.now()
	_, _, err := e.apply(ctx, userID, func(cur models.PresenceState, found bool) (models.PresenceState, bool) {
		cur.LastActivityAt = latest(cur.LastActivityAt, now)
		if !found || cur.Status == models.StatusOffline || cur.Status == models.StatusAway || cur.Status == "" {
			cur.Status = models.StatusOnline
		}
		return cur, true
	})
	return err
}

// Disconnected is called when a user's last connection is released.
func (e *Engine) Disconnected(ctx context.Context, userID int64) error {
	_, _, err := e.apply(ctx, userID, func(cur models.PresenceState, found bool) (models.PresenceState, bool) {
		if !found || cur.Status == models.StatusOffline {
			return cur, false
		}
		cur.Status = models.StatusOffline
		return cur, true
	})
	return err
}

// SetStatus applies an explicit user choice for a connected user. DO_NOT_DISTURB
// can be entered from ONLINE or AWAY, and ONLINE only by leaving DO_NOT_DISTURB.
// OFFLINE and AWAY are reached through connections and the sweep.
func (e *Engine) SetStatus(ctx context.Context, userID int64, status models.PresenceStatus) (models.PresenceState, error) {
	if status != models.StatusDoNotDisturb && status != models.StatusOnline {
		return models.PresenceState{}, apperrors.ErrInvalidStatus
	}

	now := e.now()
	var (
		result  models.PresenceState
		refusal string
	)
	_, _, err := e.apply(ctx, userID, func(cur models.PresenceState, found bool) (models.PresenceState, bool) {
		refusal = ""
		if reason := statusRefusal(cur, found, status); reason != "" {
			refusal = reason
			return cur, false
		}
		cur.Status = status
		cur.LastActivityAt = latest(cur.LastActivityAt, now)
		result = cur
		return cur, true
	})
	if err != nil {
		return models.PresenceState{}, err
	}
	if refusal != "" {
		return models.PresenceState{}, apperrors.WithMessage(apperrors.ErrInvalidStatus, refusal)
	}
	result.UserID = userID
	return result, nil
}

func statusRefusal(cur models.PresenceState, found bool, requested models.PresenceStatus) string {
	if !found || cur.Status == models.StatusOffline || cur.Status == "" {
		return "status can only be set while connected"
	}
	if requested == models.StatusOnline && cur.Status != models.StatusDoNotDisturb && cur.Status != models.StatusOnline {
		return "ONLINE can only be requested when leaving DO_NOT_DISTURB"
	}
	return ""
}

// ResetAll marks every tracked user OFFLINE. It runs at startup, before any
// connection registers, so records left by a previous process cannot stay live.
func (e *Engine) ResetAll(ctx context.Context) (int, error) {
	states, err := e.store.List(ctx)
	if err != nil {
		return 0, err
	}

	var (
		reset int
		errs  []error
	)
	for _, st := range states {
		if st.Status == models.StatusOffline {
			continue
		}
		_, ok, err := e.apply(ctx, st.UserID, func(cur models.PresenceState, found bool) (models.PresenceState, bool) {
			if !found || cur.Status == models.StatusOffline {
				return cur, false
			}
			cur.Status = models.StatusOffline
			return cur, true
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			reset++
		}
	}
	return reset, errors.Join(errs...)
}

func (e *Engine) apply(ctx context.Context, userID int64, fn Mutation) (Transition, bool, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	prev, next, written, err := e.store.Update(ctx, userID, fn)
	if err != nil {
		e.logger.Error("presence update failed", zap.Int64("user_id", userID), zap.Error(err))
		return Transition{}, false, err
	}
	if !written || prev.Status == next.Status {
		return Transition{}, false, nil
	}

	from := prev.Status
	if from == "" {
		from = models.StatusOffline
	}
	tr := Transition{UserID: userID, From: from, To: next.Status, At: next.LastActivityAt}
	e.publish(ctx, tr, next)
	return tr, true, nil
}

func (e *Engine) publish(ctx context.Context, tr Transition, st models.PresenceState) {
	observability.IncPresenceTransition(string(tr.From), string(tr.To))

	event := EventFor(st)
	payload, err := json.Marshal(models.Event{Type: models.EventPresence, Presence: &event})
	if err != nil {
		e.logger.Error("presence event encode failed", zap.Error(err))
		return
	}

	if e.peers != nil && e.notifier != nil {
		peers, err := e.peers.PeersOf(ctx, tr.UserID)
		if err != nil {
			e.logger.Warn("presence peers lookup failed", zap.Int64("user_id", tr.UserID), zap.Error(err))
		}
		for _, peer := range peers {
			e.notifier.Send(peer, payload)
		}
	}

	envelope := observability.NewEnvelope("presence", "status_changed", map[string]interface{}{
		"user_id": tr.UserID,
		"from":    tr.From,
		"to":      tr.To,
	})
	if err := observability.PublishEvent(ctx, observability.RoutingPresenceEvents, envelope, nil); err != nil {
		e.logger.Warn("presence event publish failed", zap.Error(err))
	}
	e.logger.Debug("presence transition",
		zap.Int64("user_id", tr.UserID),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
	)
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

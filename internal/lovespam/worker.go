// Package lovespam implements the cron-triggered "love spam" worker: while a
// session marker is set, every worker invocation inserts one love log on
// behalf of the partner who started the session. The marker auto-expires
// after a fixed window so a forgotten session cannot spam forever.
package lovespam

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
	"github.com/ourlittleworld/go-couple-backend/internal/session"
)

// SessionWindow is how long a spam session stays active before the worker
// clears it on its own.
const SessionWindow = time.Hour

// ErrNoSession is returned by Tick when no spam session is active.
var ErrNoSession = errors.New("no love spam session")

// Status describes the current spam session.
type Status struct {
	Active    bool          `json:"active"`
	Remaining time.Duration `json:"-"`
	// RemainingSeconds is the JSON-facing form of Remaining.
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// Worker drives the spam session. The marker (start timestamp) lives in the
// session cache; the inserted rows go through the same gateway as every
// other love log, so connected mirrors see them live.
type Worker struct {
	GW   gateway.Gateway
	Sess session.Store
	Role domain.Role
	Now  func() time.Time
}

// New builds a worker sending on behalf of role.
func New(gw gateway.Gateway, sess session.Store, role domain.Role) *Worker {
	return &Worker{GW: gw, Sess: sess, Role: role, Now: time.Now}
}

// Start sets the session marker, restarting the window if one is running.
func (w *Worker) Start() (Status, error) {
	if err := session.SetTime(w.Sess, session.KeyLoveSpamStart, w.Now()); err != nil {
		return Status{}, err
	}
	return Status{Active: true, Remaining: SessionWindow, RemainingSeconds: int64(SessionWindow.Seconds())}, nil
}

// Stop clears the session marker.
func (w *Worker) Stop() (Status, error) {
	if err := w.Sess.Delete(session.KeyLoveSpamStart); err != nil {
		return Status{}, err
	}
	return Status{}, nil
}

// StatusNow reads the marker without side effects beyond expiry cleanup.
func (w *Worker) StatusNow() Status {
	start, ok := session.GetTime(w.Sess, session.KeyLoveSpamStart)
	if !ok {
		return Status{}
	}
	rem := SessionWindow - w.Now().Sub(start)
	if rem <= 0 {
		if err := w.Sess.Delete(session.KeyLoveSpamStart); err != nil {
			log.Warn().Err(err).Msg("clearing expired love spam marker failed")
		}
		return Status{}
	}
	return Status{Active: true, Remaining: rem, RemainingSeconds: int64(rem.Seconds())}
}

// Tick is one cron invocation: no-op without a marker, expiry cleanup when
// the window has passed, otherwise one inserted love log and the remaining
// time.
func (w *Worker) Tick(ctx context.Context) (Status, error) {
	st := w.StatusNow()
	if !st.Active {
		return st, ErrNoSession
	}

	row := domain.LoveLog{
		ID:        uuid.NewString(),
		Sender:    w.Role,
		CreatedAt: w.Now().UTC(),
	}
	if err := w.GW.Insert(ctx, domain.LoveLog{}.TableName(), &row); err != nil {
		return st, err
	}
	return st, nil
}

// Package notify implements the notification side-channel: whenever a
// mutation should alert the partner, a row is inserted into the
// notifications table. Inserts are fire-and-forget from the mutating store's
// point of view; a duplicate dedup key is an expected, benign no-op.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
)

// Notification type tags, matched by the client to pick an icon and a
// navigation behavior.
const (
	TypeCaption   = "caption"
	TypePost      = "post"
	TypeProfile   = "profile"
	TypeCountdown = "countdown"
	TypeEvent     = "event"
	TypeLove      = "love"
	TypeComment   = "comment"
	TypeGreeting  = "greeting"
)

// Notifier inserts partner-facing notification rows.
type Notifier struct {
	GW  gateway.Gateway
	Now func() time.Time
}

// New returns a Notifier on the given gateway.
func New(gw gateway.Gateway) *Notifier {
	return &Notifier{GW: gw, Now: time.Now}
}

var titleCaser = cases.Title(language.English)

// Push inserts one notification. ID and CreatedAt are filled in, the title
// is title-cased for display, and a duplicate dedup key returns nil: the
// partner was already alerted about this logical event.
func (n *Notifier) Push(ctx context.Context, note domain.Notification) error {
	if !note.Recipient.Valid() {
		return domain.ErrUnknownRole
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = n.Now().UTC()
	}
	note.Title = titleCaser.String(note.Title)

	if err := n.GW.Insert(ctx, domain.Notification{}.TableName(), &note); err != nil {
		if gateway.IsDuplicate(err) {
			return nil
		}
		return err
	}
	return nil
}

// Go pushes in the background. Mutations call this after they succeed; a
// side-channel failure must never fail or roll back the mutation itself.
func (n *Notifier) Go(note domain.Notification) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.Push(ctx, note); err != nil {
			log.Warn().Err(err).
				Str("recipient", note.Recipient.Storage()).
				Str("type", note.Type).
				Msg("notification push failed")
		}
	}()
}

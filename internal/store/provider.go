package store

import (
	"context"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
	"github.com/ourlittleworld/go-couple-backend/internal/notify"
	"github.com/ourlittleworld/go-couple-backend/internal/session"
)

// Provider composes every entity store for one session's role. It is the
// single owner of all mirrors; Close tears them down in reverse open order.
type Provider struct {
	Captions      *Captions
	Posts         *Posts
	Profiles      *Profiles
	Countdowns    *Countdowns
	Events        *Events
	Notifications *Notifications
	Love          *Love
	Comments      *Comments
	Greetings     *Greetings

	Session session.Store
	Role    domain.Role
}

// Open builds the full store set over one gateway. cleaner may be nil.
func Open(ctx context.Context, gw gateway.Gateway, notifier *notify.Notifier, sess session.Store, role domain.Role, cleaner MediaCleaner) (*Provider, error) {
	p := &Provider{Session: sess, Role: role}

	var err error
	open := func(f func() error) {
		if err == nil {
			err = f()
		}
	}
	open(func() (e error) { p.Captions, e = OpenCaptions(ctx, gw, notifier); return })
	open(func() (e error) { p.Posts, e = OpenPosts(ctx, gw, notifier, cleaner); return })
	open(func() (e error) { p.Profiles, e = OpenProfiles(ctx, gw, notifier); return })
	open(func() (e error) { p.Countdowns, e = OpenCountdowns(ctx, gw, notifier); return })
	open(func() (e error) { p.Events, e = OpenEvents(ctx, gw, notifier); return })
	open(func() (e error) { p.Notifications, e = OpenNotifications(ctx, gw, role); return })
	open(func() (e error) { p.Love, e = OpenLove(ctx, gw, notifier, sess, role); return })
	open(func() (e error) { p.Comments, e = OpenComments(ctx, gw, notifier); return })
	open(func() (e error) { p.Greetings, e = OpenGreetings(ctx, gw, notifier); return })
	if err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Close tears every opened mirror down. Safe on a partially opened provider.
func (p *Provider) Close() {
	if p.Greetings != nil {
		p.Greetings.Close()
	}
	if p.Comments != nil {
		p.Comments.Close()
	}
	if p.Love != nil {
		p.Love.Close()
	}
	if p.Notifications != nil {
		p.Notifications.Close()
	}
	if p.Events != nil {
		p.Events.Close()
	}
	if p.Countdowns != nil {
		p.Countdowns.Close()
	}
	if p.Profiles != nil {
		p.Profiles.Close()
	}
	if p.Posts != nil {
		p.Posts.Close()
	}
	if p.Captions != nil {
		p.Captions.Close()
	}
}

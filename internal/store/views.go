package store

import (
	"time"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
)

// This file holds the derived role-aware views: pure functions combining an
// entity snapshot, the active role, and the current date. They perform no
// I/O and must be recomputed whenever any input changes.

// DayCaptions splits one day's captions into mine and the partner's. A nil
// pointer means that row does not exist yet.
type DayCaptions struct {
	Mine    *domain.Caption
	Partner *domain.Caption
}

// CaptionsFor derives the (mine, partner) view of captions for one day.
func CaptionsFor(snapshot []domain.Caption, role domain.Role, day string) DayCaptions {
	var v DayCaptions
	for i := range snapshot {
		if snapshot[i].Day != day {
			continue
		}
		c := snapshot[i]
		switch c.Role {
		case role:
			v.Mine = &c
		case role.Other():
			v.Partner = &c
		}
	}
	return v
}

// PartnerText returns the partner's caption content, or "" until their row
// exists.
func (v DayCaptions) PartnerText() string {
	if v.Partner == nil {
		return ""
	}
	return v.Partner.Content
}

// MineText returns the caller's caption content, or "" until submitted.
func (v DayCaptions) MineText() string {
	if v.Mine == nil {
		return ""
	}
	return v.Mine.Content
}

// NextCountdown returns the soonest countdown whose target is still ahead
// of now, or nil when none is.
func NextCountdown(snapshot []domain.Countdown, now time.Time) *domain.Countdown {
	var next *domain.Countdown
	for i := range snapshot {
		if snapshot[i].TargetDate.Before(now) {
			continue
		}
		if next == nil || snapshot[i].TargetDate.Before(next.TargetDate) {
			next = &snapshot[i]
		}
	}
	return next
}

// EventsOn returns the special events recurring on now's month-day.
func EventsOn(snapshot []domain.SpecialEvent, now time.Time) []domain.SpecialEvent {
	md := now.Format("01-02")
	var out []domain.SpecialEvent
	for _, e := range snapshot {
		if e.MonthDay == md {
			out = append(out, e)
		}
	}
	return out
}

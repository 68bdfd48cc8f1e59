package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseRole_BothSpellings(t *testing.T) {
	cases := []struct {
		in   string
		want Role
	}{
		{"him", RoleHim},
		{"her", RoleHer},
		{"ảnh", RoleHim},
		{"ẻm", RoleHer},
	}
	for _, tc := range cases {
		got, err := ParseRole(tc.in)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseRole(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseRole_Unknown(t *testing.T) {
	if _, err := ParseRole("them"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if _, err := ParseRole(""); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole for empty, got %v", err)
	}
}

func TestRole_OtherAndSchemes(t *testing.T) {
	if RoleHim.Other() != RoleHer || RoleHer.Other() != RoleHim {
		t.Fatalf("Other() should swap partners")
	}
	if RoleHim.Storage() != "him" || RoleHer.Storage() != "her" {
		t.Fatalf("storage scheme wrong: %q %q", RoleHim.Storage(), RoleHer.Storage())
	}
	if RoleHim.DisplayName() != "ảnh" || RoleHer.DisplayName() != "ẻm" {
		t.Fatalf("display scheme wrong: %q %q", RoleHim.DisplayName(), RoleHer.DisplayName())
	}
	if !RoleHim.Valid() || !RoleHer.Valid() || Role("x").Valid() {
		t.Fatalf("Valid() wrong")
	}
}

func TestDayOf_UTC(t *testing.T) {
	// 23:30 in UTC+7 is 16:30 UTC the same date; day keys are UTC
	loc := time.FixedZone("ICT", 7*3600)
	ts := time.Date(2025, 3, 10, 2, 30, 0, 0, loc) // 2025-03-09 19:30 UTC
	if got := DayOf(ts); got != "2025-03-09" {
		t.Fatalf("DayOf = %q, want 2025-03-09", got)
	}
}

func TestPost_SyncMediaURL(t *testing.T) {
	p := Post{MediaURLs: StringList{"https://cdn/a.jpg", "https://cdn/b.jpg"}}
	p.SyncMediaURL()
	if p.MediaURL != "https://cdn/a.jpg" {
		t.Fatalf("MediaURL = %q, want first list entry", p.MediaURL)
	}

	// empty list leaves the singular field alone
	q := Post{MediaURL: "keep"}
	q.SyncMediaURL()
	if q.MediaURL != "keep" {
		t.Fatalf("MediaURL should be untouched for empty list, got %q", q.MediaURL)
	}
}

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile(RoleHer)
	if p.ID != RoleHer || p.Name != RoleHer.DisplayName() {
		t.Fatalf("unexpected default profile: %+v", p)
	}
}

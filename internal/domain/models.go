// Package domain defines the persistence models for the couple app: daily
// captions, timeline posts, profiles, countdowns, special events,
// notifications, love logs, comments, and greetings. These types are mapped
// with GORM and form the shared data layer both partners' sessions read and
// write.
package domain

import (
	"time"
)

// DayFormat is the day-granularity key format used by captions and posts.
const DayFormat = "2006-01-02"

// DayOf renders a timestamp as a day key (UTC).
func DayOf(t time.Time) string { return t.UTC().Format(DayFormat) }

// Caption is the daily-caption ritual entry. Exactly one row exists per
// (day, role) pair; submitting again overwrites via upsert.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Day: day key in DayFormat; part of the composite unique index.
//   - Role: author role in the storage scheme ("him"/"her").
//   - Content: caption text.
//   - MediaURL: optional attached media reference.
type Caption struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Day       string    `json:"day"        gorm:"type:char(10);not null;uniqueIndex:ux_captions_day_role,priority:1"`
	Role      Role      `json:"role"       gorm:"type:varchar(8);not null;uniqueIndex:ux_captions_day_role,priority:2;check:role IN ('him','her')"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	MediaURL  string    `json:"media_url"  gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Caption.
func (Caption) TableName() string { return "captions" }

// CaptionConflictColumns is the upsert conflict key for captions.
var CaptionConflictColumns = []string{"day", "role"}

// Post is a shared timeline memory. The ID is generated client-side before
// the insert so the optimistic mirror entry and the stored row agree without
// reconciliation.
//
// MediaURL is the legacy singular field; whenever MediaURLs is non-empty it
// must equal MediaURLs[0]. SyncMediaURL enforces that.
type Post struct {
	ID        string      `json:"id"         gorm:"type:char(36);primaryKey"`
	Role      Role        `json:"role"       gorm:"type:varchar(8);not null;index"`
	Title     string      `json:"title"      gorm:"type:varchar(255);not null"`
	Content   string      `json:"content"    gorm:"type:text"`
	MediaURL  string      `json:"media_url"  gorm:"type:text"`
	MediaURLs StringList  `json:"media_urls" gorm:"type:text"`
	EventDate string      `json:"event_date" gorm:"type:char(10);index"`
	Category  string      `json:"category"   gorm:"type:varchar(64)"`
	Reactions ReactionMap `json:"reactions"  gorm:"type:text"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string { return "posts" }

// SyncMediaURL keeps the legacy singular field consistent with the list.
func (p *Post) SyncMediaURL() {
	if len(p.MediaURLs) > 0 {
		p.MediaURL = p.MediaURLs[0]
	}
}

// Profile is a per-role profile page. The ID is the storage role name, so
// there is at most one row per partner; edits go through upsert. A missing
// row is merged with DefaultProfile on read.
type Profile struct {
	ID        Role       `json:"id"         gorm:"type:varchar(8);primaryKey"`
	Name      string     `json:"name"       gorm:"type:varchar(128)"`
	AvatarURL string     `json:"avatar_url" gorm:"type:text"`
	Tagline   string     `json:"tagline"    gorm:"type:varchar(255)"`
	Bio       string     `json:"bio"        gorm:"type:text"`
	Tags      StringList `json:"tags"       gorm:"type:text"`
	Likes     StringList `json:"likes"      gorm:"type:text"`
	Dislikes  StringList `json:"dislikes"   gorm:"type:text"`
	Password  string     `json:"-"          gorm:"type:varchar(128)"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// DefaultProfile returns the client-side defaults merged in when a partner
// has not saved a profile row yet.
func DefaultProfile(role Role) Profile {
	return Profile{
		ID:   role,
		Name: role.DisplayName(),
	}
}

// Countdown is a shared countdown toward a target date.
type Countdown struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Title       string    `json:"title"       gorm:"type:varchar(255);not null"`
	TargetDate  time.Time `json:"target_date" gorm:"not null;index"`
	Icon        string    `json:"icon"        gorm:"type:varchar(64)"`
	Category    string    `json:"category"    gorm:"type:varchar(64)"`
	Description string    `json:"description" gorm:"type:text"`
	ImageURL    string    `json:"image_url"   gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Countdown.
func (Countdown) TableName() string { return "countdowns" }

// SpecialEvent is a yearly recurring date (anniversary, birthday) keyed by
// month and day.
type SpecialEvent struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Title     string    `json:"title"     gorm:"type:varchar(255);not null"`
	MonthDay  string    `json:"month_day" gorm:"type:char(5);not null;index"` // "MM-DD"
	Message   string    `json:"message"   gorm:"type:text"`
	Icon      string    `json:"icon"      gorm:"type:varchar(64)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for SpecialEvent.
func (SpecialEvent) TableName() string { return "special_events" }

// Notification alerts one partner about the other's action. DedupKey, when
// set, is unique: a second insert with the same key is treated as a benign
// no-op by the side-channel, which is how "same logical event" alerts
// collapse into one row.
type Notification struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Recipient Role      `json:"recipient"  gorm:"type:varchar(8);not null;index"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null"`
	Body      string    `json:"body"       gorm:"type:text"`
	Type      string    `json:"type"       gorm:"type:varchar(32)"`
	Target    string    `json:"target"     gorm:"type:varchar(128)"` // navigation target, e.g. "/timeline"
	DedupKey  *string   `json:"dedup_key,omitempty" gorm:"type:varchar(255);uniqueIndex"`
	Read      bool      `json:"read"       gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// LoveLog is one tap of the love counter. Append-only; aggregated by count
// queries (today, all-time). The 5-minute cooldown between sends is advisory
// and enforced client-side, so the table itself carries no constraint.
type LoveLog struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Sender    Role      `json:"sender"     gorm:"type:varchar(8);not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for LoveLog.
func (LoveLog) TableName() string { return "love_logs" }

// Comment is a reply on a timeline post.
type Comment struct {
	ID        string      `json:"id"        gorm:"type:char(36);primaryKey"`
	PostID    string      `json:"post_id"   gorm:"type:char(36);not null;index"`
	Role      Role        `json:"role"      gorm:"type:varchar(8);not null"`
	Content   string      `json:"content"   gorm:"type:text;not null"`
	Reactions ReactionMap `json:"reactions" gorm:"type:text"`
	CreatedAt time.Time   `json:"created_at"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string { return "comments" }

// Greeting is a short saved message shown by time of day.
type Greeting struct {
	ID        string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Content   string    `json:"content"     gorm:"type:text;not null"`
	TimeOfDay string    `json:"time_of_day" gorm:"type:varchar(16);index"` // morning|noon|evening|night
	Role      Role      `json:"role"        gorm:"type:varchar(8);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Greeting.
func (Greeting) TableName() string { return "greetings" }

// AllModels lists every model for automigration.
func AllModels() []any {
	return []any{
		&Caption{},
		&Post{},
		&Profile{},
		&Countdown{},
		&SpecialEvent{},
		&Notification{},
		&LoveLog{},
		&Comment{},
		&Greeting{},
	}
}

package domain

import "time"

type SessionID string

type SessionStatus string

const (
	StatusOpen       SessionStatus = "open"
	StatusSettingUp  SessionStatus = "setting_up"
	StatusInProgress SessionStatus = "in_progress"
	StatusEnded      SessionStatus = "ended"
	StatusCancelled  SessionStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

func (s SessionStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusSettingUp, StatusInProgress, StatusEnded, StatusCancelled:
		return true
	}
	return false
}

// ActiveStatuses are the statuses the periodic sweep revisits.
var ActiveStatuses = []SessionStatus{StatusOpen, StatusSettingUp, StatusInProgress}

const (
	CreatorSlot = 0

	MinPartners = 1
	MaxPartners = 2
)

// Slot is one participant position. Slot 0 always belongs to the creator.
type Slot struct {
	Occupant    UserID        `json:"occupant,omitempty" bson:"occupant,omitempty"`
	StreamURL   string        `json:"stream_url,omitempty" bson:"streamUrl,omitempty"`
	VideoID     string        `json:"video_id,omitempty" bson:"videoId,omitempty"`
	Description string        `json:"description,omitempty" bson:"description,omitempty"`
	JoinedAt    *time.Time    `json:"joined_at,omitempty" bson:"joinedAt,omitempty"`
	LastKnown   *StreamStatus `json:"last_known,omitempty" bson:"lastKnown,omitempty"`
}

func (s Slot) Occupied() bool {
	return s.Occupant != ""
}

type Totals struct {
	Views    int64 `json:"views" bson:"views"`
	Likes    int64 `json:"likes" bson:"likes"`
	Comments int64 `json:"comments" bson:"comments"`
}

// Session is the shared record of a multi-party livestream collaboration.
type Session struct {
	ID              SessionID     `json:"id" bson:"_id"`
	Creator         UserID        `json:"creator" bson:"creator"`
	MaxPartners     int           `json:"max_partners" bson:"maxPartners"`
	Slots           []Slot        `json:"slots" bson:"slots"`
	Status          SessionStatus `json:"status" bson:"status"`
	CreatedAt       time.Time     `json:"created_at" bson:"createdAt"`
	StartedAt       *time.Time    `json:"started_at,omitempty" bson:"startedAt,omitempty"`
	EndedAt         *time.Time    `json:"ended_at,omitempty" bson:"endedAt,omitempty"`
	LastStatusCheck *time.Time    `json:"last_status_check,omitempty" bson:"lastStatusCheck,omitempty"`
	Totals          *Totals       `json:"totals,omitempty" bson:"totals,omitempty"`
	Version         int64         `json:"version" bson:"version"`
}

// HasMember reports whether user holds any slot, creator included.
func (s *Session) HasMember(user UserID) bool {
	if user == "" {
		return false
	}
	if s.Creator == user {
		return true
	}
	for _, slot := range s.Slots {
		if slot.Occupant == user {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so repositories never share mutable state with callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Slots = make([]Slot, len(s.Slots))
	for i, slot := range s.Slots {
		c.Slots[i] = slot
		c.Slots[i].JoinedAt = cloneTime(slot.JoinedAt)
		if slot.LastKnown != nil {
			lk := slot.LastKnown.Clone()
			c.Slots[i].LastKnown = &lk
		}
	}
	c.StartedAt = cloneTime(s.StartedAt)
	c.EndedAt = cloneTime(s.EndedAt)
	c.LastStatusCheck = cloneTime(s.LastStatusCheck)
	if s.Totals != nil {
		t := *s.Totals
		c.Totals = &t
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Trigger names the event that caused a status recomputation.
type Trigger string

const (
	TriggerCreate  Trigger = "create"
	TriggerMatch   Trigger = "match"
	TriggerRefresh Trigger = "refresh"
	TriggerSweep   Trigger = "sweep"
)

package services

import (
	"time"

	"collabstream/internal/core/domain"
)

// slotSummary is the order-independent view of one evaluation pass that the
// lifecycle rules are written against.
type slotSummary struct {
	partners    int
	maxPartners int
	withData    int
	anyLive     bool
	anyWaiting  bool
	allEnded    bool
	totals      domain.Totals
}

type lifecycleRule struct {
	name   string
	target domain.SessionStatus
	when   func(slotSummary) bool
}

// lifecycleRules is evaluated top to bottom and the first match wins.
// A partnerless session whose streams all ended lands on cancelled, not ended.
var lifecycleRules = []lifecycleRule{
	{
		name:   "no_partner_started_or_finished",
		target: domain.StatusCancelled,
		when: func(s slotSummary) bool {
			return s.partners == 0 && (s.anyLive || s.allEnded)
		},
	},
	{
		name:   "all_streams_ended",
		target: domain.StatusEnded,
		when:   func(s slotSummary) bool { return s.allEnded },
	},
	{
		name:   "live_with_partner",
		target: domain.StatusInProgress,
		when:   func(s slotSummary) bool { return s.anyLive && s.partners >= 1 },
	},
	{
		name:   "waiting_and_full",
		target: domain.StatusSettingUp,
		when:   func(s slotSummary) bool { return s.anyWaiting && s.partners == s.maxPartners },
	},
	{
		name:   "waiting_with_free_slot",
		target: domain.StatusOpen,
		when:   func(s slotSummary) bool { return s.anyWaiting && s.partners < s.maxPartners },
	},
}

// Decision describes the outcome of one lifecycle evaluation.
type Decision struct {
	Rule    string
	From    domain.SessionStatus
	To      domain.SessionStatus
	Matched bool
	// SlotsUpdated is set when any slot's last known stream status changed.
	SlotsUpdated bool
}

// Transitioned reports a status change, as opposed to a rule re-confirming the current status.
func (d Decision) Transitioned() bool {
	return d.Matched && d.From != d.To
}

// Evaluate computes the next state of session from the per-slot stream
// statuses in observations, keyed by slot index. Slots without an entry are
// treated as having no data. The input session is never mutated. Terminal
// sessions are returned unchanged.
func Evaluate(session *domain.Session, observations map[int]domain.StreamStatus, now time.Time) (*domain.Session, Decision) {
	next := session.Clone()
	decision := Decision{From: session.Status, To: session.Status}

	if session.Status.IsTerminal() {
		return next, decision
	}

	summary := summarize(next, observations)
	for i := range next.Slots {
		obs, ok := observations[i]
		if !ok || !next.Slots[i].Occupied() {
			continue
		}
		if next.Slots[i].LastKnown == nil || !sameStreamStatus(*next.Slots[i].LastKnown, obs) {
			decision.SlotsUpdated = true
		}
		lk := obs.Clone()
		next.Slots[i].LastKnown = &lk
	}

	for _, rule := range lifecycleRules {
		if !rule.when(summary) {
			continue
		}
		decision.Rule = rule.name
		decision.Matched = true
		decision.To = rule.target
		applyRule(next, rule.target, summary, now)
		break
	}

	return next, decision
}

func summarize(session *domain.Session, observations map[int]domain.StreamStatus) slotSummary {
	s := slotSummary{
		partners:    OccupiedPartners(session),
		maxPartners: session.MaxPartners,
		allEnded:    true,
	}
	for i, slot := range session.Slots {
		if i > session.MaxPartners || !slot.Occupied() {
			continue
		}
		obs, ok := observations[i]
		if !ok {
			continue
		}
		s.withData++
		switch {
		case obs.Live:
			s.anyLive = true
			s.allEnded = false
		case obs.WaitingRoom:
			s.anyWaiting = true
			s.allEnded = false
		default:
			s.totals.Views += obs.ViewCount
			s.totals.Likes += obs.LikeCount
			s.totals.Comments += obs.CommentCount
		}
	}
	if s.withData == 0 {
		s.allEnded = false
	}
	return s
}

func applyRule(session *domain.Session, target domain.SessionStatus, summary slotSummary, now time.Time) {
	session.Status = target
	session.LastStatusCheck = timePtr(now)

	switch target {
	case domain.StatusCancelled:
		session.EndedAt = timePtr(now)
	case domain.StatusEnded:
		session.EndedAt = timePtr(now)
		totals := summary.totals
		session.Totals = &totals
	case domain.StatusInProgress:
		if session.StartedAt == nil {
			session.StartedAt = timePtr(now)
		}
	}
}

// sameStreamStatus compares two observations ignoring resolution bookkeeping.
func sameStreamStatus(a, b domain.StreamStatus) bool {
	return a.VideoID == b.VideoID &&
		a.Valid == b.Valid &&
		a.WaitingRoom == b.WaitingRoom &&
		a.Live == b.Live &&
		a.Title == b.Title &&
		a.Thumbnail == b.Thumbnail &&
		a.ViewCount == b.ViewCount &&
		a.LikeCount == b.LikeCount &&
		a.CommentCount == b.CommentCount &&
		a.ConcurrentViewers == b.ConcurrentViewers &&
		a.Reason == b.Reason &&
		equalTime(a.ScheduledStartTime, b.ScheduledStartTime) &&
		equalTime(a.ActualStartTime, b.ActualStartTime) &&
		equalTime(a.ActualEndTime, b.ActualEndTime)
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func timePtr(t time.Time) *time.Time {
	return &t
}

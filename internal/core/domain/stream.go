package domain

import "time"

// BroadcastState is the upstream classification of a video.
type BroadcastState string

const (
	BroadcastUpcoming BroadcastState = "upcoming"
	BroadcastLive     BroadcastState = "live"
	BroadcastNone     BroadcastState = "none"
)

// VideoMetadata is what the upstream provider returns for a single video.
type VideoMetadata struct {
	ID                 string
	Title              string
	Thumbnail          string
	BroadcastState     BroadcastState
	ViewCount          int64
	LikeCount          int64
	CommentCount       int64
	ConcurrentViewers  int64
	ScheduledStartTime *time.Time
	ActualStartTime    *time.Time
	ActualEndTime      *time.Time
}

// StreamReason explains why a StreamStatus is not valid.
type StreamReason string

const (
	ReasonNotFound      StreamReason = "not found"
	ReasonNotLiveStream StreamReason = "not a live stream"
	ReasonUpstreamError StreamReason = "upstream error"
)

// StreamStatus is the normalized live/waiting/ended classification of a video.
type StreamStatus struct {
	VideoID            string       `json:"video_id" bson:"videoId"`
	Valid              bool         `json:"is_valid" bson:"isValid"`
	WaitingRoom        bool         `json:"is_waiting_room" bson:"isWaitingRoom"`
	Live               bool         `json:"is_live" bson:"isLive"`
	Title              string       `json:"title,omitempty" bson:"title,omitempty"`
	Thumbnail          string       `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	ViewCount          int64        `json:"view_count" bson:"viewCount"`
	LikeCount          int64        `json:"like_count" bson:"likeCount"`
	CommentCount       int64        `json:"comment_count" bson:"commentCount"`
	ConcurrentViewers  int64        `json:"concurrent_viewers,omitempty" bson:"concurrentViewers,omitempty"`
	ScheduledStartTime *time.Time   `json:"scheduled_start_time,omitempty" bson:"scheduledStartTime,omitempty"`
	ActualStartTime    *time.Time   `json:"actual_start_time,omitempty" bson:"actualStartTime,omitempty"`
	ActualEndTime      *time.Time   `json:"actual_end_time,omitempty" bson:"actualEndTime,omitempty"`
	Reason             StreamReason `json:"error,omitempty" bson:"reason,omitempty"`
	ResolvedAt         time.Time    `json:"resolved_at" bson:"resolvedAt"`
	Stale              bool         `json:"stale,omitempty" bson:"-"`
}

// Ended reports a broadcast that is neither live nor waiting to start.
func (s StreamStatus) Ended() bool {
	return !s.Live && !s.WaitingRoom
}

// Broadcastable reports whether the stream may back a slot: scheduled or currently live.
func (s StreamStatus) Broadcastable() bool {
	return s.Valid && (s.Live || s.WaitingRoom)
}

func (s StreamStatus) Clone() StreamStatus {
	c := s
	c.ScheduledStartTime = cloneTime(s.ScheduledStartTime)
	c.ActualStartTime = cloneTime(s.ActualStartTime)
	c.ActualEndTime = cloneTime(s.ActualEndTime)
	return c
}

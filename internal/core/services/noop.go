package services

import (
	"context"
	"time"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
)

type noopMetrics struct{}

// NoopMetrics returns a recorder that discards everything.
func NoopMetrics() ports.MetricsRecorder { return noopMetrics{} }

func (noopMetrics) RecordCacheLookup(string)                                    {}
func (noopMetrics) RecordUpstreamCall(string, time.Duration)                    {}
func (noopMetrics) RecordTransition(domain.SessionStatus, domain.SessionStatus) {}
func (noopMetrics) RecordSweep(time.Duration, ports.SweepResult)                {}

type noopPublisher struct{}

// NoopPublisher returns a publisher used when the event bus is disabled.
func NoopPublisher() ports.EventPublisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, *domain.SessionEvent) error { return nil }

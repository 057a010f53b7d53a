package service

import (
	"context"

	"taxregistry/internal/taxpayer/models"
	"taxregistry/pkg/requestcontext"
)

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

// publish hands the event to the publisher. The change is already committed,
// so a failure is logged and never returned to the caller.
func (s *Service) publish(ctx context.Context, event models.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to publish taxpayer event",
			"event", event.EventType(),
			"tid", event.AggregateID(),
			"error", err,
		)
	}
}

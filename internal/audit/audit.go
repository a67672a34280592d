package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrkadirov2005/shopPos/internal/domain"
)

// Sink records one audit message for an actor inside a shop.
type Sink interface {
	Record(ctx context.Context, shopID string, actorID string, message string) error
}

type Writer interface {
	CreateAuditEvent(ctx context.Context, event domain.AuditEvent) error
}

// StoreSink assigns the event id and calendar partition and hands the
// event to the repository.
type StoreSink struct {
	writer Writer
	now    func() time.Time
}

func NewStoreSink(writer Writer) *StoreSink {
	return &StoreSink{
		writer: writer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *StoreSink) Record(ctx context.Context, shopID string, actorID string, message string) error {
	at := s.now()
	day := domain.CalendarDayOf(at)
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		actorID = "system"
	}

	return s.writer.CreateAuditEvent(ctx, domain.AuditEvent{
		ID:        uuid.NewString(),
		ShopID:    shopID,
		Day:       day.Day,
		Month:     day.Month,
		Year:      day.Year,
		TargetID:  actorID,
		Log:       message,
		CreatedAt: at,
	})
}

type NoopSink struct{}

func (NoopSink) Record(_ context.Context, _ string, _ string, _ string) error {
	return nil
}

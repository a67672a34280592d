package service

import (
	"context"

	"github.com/mrkadirov2005/shopPos/internal/domain"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// ListAuditEvents returns a shop's audit trail, newest first. Admins only see
// events they caused.
func (s *Service) ListAuditEvents(ctx context.Context, shopID string, limit int) ([]domain.AuditEvent, error) {
	shopID, err := s.scopedShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	targetID := ""
	if actor, ok := ActorFromContext(ctx); ok && actor.Role != domain.RoleSuperuser {
		targetID = actor.ID
	}

	events, err := s.repo.ListAuditEvents(ctx, shopID, targetID, limit)
	if err != nil {
		return nil, classify("list audit events", err)
	}
	return events, nil
}

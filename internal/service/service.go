package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/mrkadirov2005/shopPos/internal/audit"
	"github.com/mrkadirov2005/shopPos/internal/cache"
	"github.com/mrkadirov2005/shopPos/internal/domain"
	"github.com/mrkadirov2005/shopPos/internal/inventory"
	"github.com/mrkadirov2005/shopPos/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo          store.Repository
	ledger        *inventory.Ledger
	audit         audit.Sink
	stats         cache.StatsCache
	statsTTL      time.Duration
	defaultShopID string
	now           func() time.Time
}

func New(repo store.Repository, sink audit.Sink, stats cache.StatsCache, statsTTL time.Duration, defaultShopID string) *Service {
	if sink == nil {
		sink = audit.NoopSink{}
	}
	if stats == nil {
		stats = cache.NoopStatsCache{}
	}
	if statsTTL <= 0 {
		statsTTL = time.Minute
	}

	return &Service{
		repo:          repo,
		ledger:        inventory.NewLedger(repo),
		audit:         sink,
		stats:         stats,
		statsTTL:      statsTTL,
		defaultShopID: strings.TrimSpace(defaultShopID),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// resolveShop picks the first non-empty candidate, then the actor's shop,
// then the configured default.
func (s *Service) resolveShop(ctx context.Context, candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	if actor, ok := ActorFromContext(ctx); ok && actor.ShopID != "" {
		return actor.ShopID
	}
	return s.defaultShopID
}

// scopedShop resolves the shop for a request and checks the actor may use it.
func (s *Service) scopedShop(ctx context.Context, candidates ...string) (string, error) {
	shopID := s.resolveShop(ctx, candidates...)
	if shopID == "" {
		return "", missingField("shop_id")
	}
	if !canSeeShop(ctx, shopID) {
		return "", ErrForbiddenShop
	}
	return shopID, nil
}

// canSeeShop reports whether the actor may read rows owned by shopID.
// Admins are bound to their own shop.
func canSeeShop(ctx context.Context, shopID string) bool {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role == domain.RoleSuperuser || actor.ShopID == "" {
		return true
	}
	return actor.ShopID == shopID
}

func actorID(ctx context.Context, fallback string) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.ID != "" {
		return actor.ID
	}
	if fallback != "" {
		return fallback
	}
	return "system"
}

// logAudit never fails the caller. It runs on a context detached from the
// request so a client disconnect after commit does not drop the event.
func (s *Service) logAudit(ctx context.Context, shopID string, actor string, message string) {
	if err := s.audit.Record(context.WithoutCancel(ctx), shopID, actor, message); err != nil {
		log.Printf("[audit] WARN: failed to write audit event shop=%s actor=%s: %v", shopID, actor, err)
	}
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mrkadirov2005/shopPos/internal/domain"
	"github.com/mrkadirov2005/shopPos/internal/store"
	"github.com/mrkadirov2005/shopPos/internal/validator"
)

func (s *Service) CreateDebt(ctx context.Context, req domain.DebtCreateRequest) (domain.Debt, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return domain.Debt{}, missingField(errs[0].FailedField)
	}
	if !req.Amount.IsPositive() {
		return domain.Debt{}, invalidField("amount", "amount must be positive")
	}
	shopID, err := s.scopedShop(ctx, req.ShopID)
	if err != nil {
		return domain.Debt{}, err
	}
	adminID := strings.TrimSpace(req.AdminID)
	if adminID == "" {
		adminID = actorID(ctx, "")
	}

	day := domain.CalendarDayOf(s.now())
	created, err := s.repo.CreateDebt(ctx, domain.Debt{
		ID:           uuid.NewString(),
		Day:          day.Day,
		Month:        day.Month,
		Year:         day.Year,
		Name:         strings.TrimSpace(req.Name),
		Amount:       *req.Amount,
		ProductNames: []string(req.ProductNames),
		BranchID:     *req.BranchID,
		ShopID:       shopID,
		AdminID:      adminID,
	})
	if err != nil {
		return domain.Debt{}, classify("create debt", err)
	}

	s.logAudit(ctx, shopID, actorID(ctx, adminID), fmt.Sprintf("Debt %s created for %s, amount %s", created.ID, created.Name, created.Amount.StringFixed(2)))
	return *created, nil
}

func (s *Service) GetDebt(ctx context.Context, id string) (domain.Debt, error) {
	debt, err := s.repo.GetDebt(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Debt{}, classify("get debt", err)
	}
	if !canSeeShop(ctx, debt.ShopID) {
		return domain.Debt{}, store.ErrNotFound
	}
	return *debt, nil
}

// ListDebts always scopes to one shop; branch, customer and returned-state
// filters narrow it further.
func (s *Service) ListDebts(ctx context.Context, filter domain.DebtFilter) ([]domain.Debt, error) {
	shopID, err := s.scopedShop(ctx, filter.ShopID)
	if err != nil {
		return nil, err
	}
	filter.ShopID = shopID
	filter.Customer = strings.TrimSpace(filter.Customer)

	debts, err := s.repo.ListDebts(ctx, filter)
	if err != nil {
		return nil, classify("list debts", err)
	}
	return debts, nil
}

func (s *Service) UpdateDebt(ctx context.Context, id string, req domain.DebtUpdateRequest) (domain.Debt, error) {
	existing, err := s.GetDebt(ctx, id)
	if err != nil {
		return domain.Debt{}, err
	}

	updated := existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Debt{}, missingField("name")
		}
		updated.Name = name
	}
	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return domain.Debt{}, invalidField("amount", "amount must be positive")
		}
		updated.Amount = *req.Amount
	}
	if req.ProductNames != nil {
		updated.ProductNames = []string(req.ProductNames)
	}
	if req.BranchID != nil {
		updated.BranchID = *req.BranchID
	}
	if req.IsReturned != nil {
		updated.IsReturned = *req.IsReturned
	}

	saved, err := s.repo.UpdateDebt(ctx, updated)
	if err != nil {
		return domain.Debt{}, classify("update debt", err)
	}

	s.logAudit(ctx, saved.ShopID, actorID(ctx, saved.AdminID), fmt.Sprintf("Debt %s updated", saved.ID))
	return *saved, nil
}

func (s *Service) MarkDebtReturned(ctx context.Context, id string) (domain.Debt, error) {
	existing, err := s.GetDebt(ctx, id)
	if err != nil {
		return domain.Debt{}, err
	}
	existing.IsReturned = true

	saved, err := s.repo.UpdateDebt(ctx, existing)
	if err != nil {
		return domain.Debt{}, classify("mark debt returned", err)
	}

	s.logAudit(ctx, saved.ShopID, actorID(ctx, saved.AdminID), fmt.Sprintf("Debt %s of %s marked as returned", saved.ID, saved.Name))
	return *saved, nil
}

func (s *Service) DeleteDebt(ctx context.Context, id string) error {
	existing, err := s.GetDebt(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteDebt(ctx, existing.ID); err != nil {
		return classify("delete debt", err)
	}

	s.logAudit(ctx, existing.ShopID, actorID(ctx, existing.AdminID), fmt.Sprintf("Debt %s of %s deleted", existing.ID, existing.Name))
	return nil
}

func (s *Service) DebtStatistics(ctx context.Context, shopID string) (domain.DebtStatistics, error) {
	shopID, err := s.scopedShop(ctx, shopID)
	if err != nil {
		return domain.DebtStatistics{}, err
	}
	stats, err := s.repo.DebtStatistics(ctx, shopID)
	if err != nil {
		return domain.DebtStatistics{}, classify("debt statistics", err)
	}
	return stats, nil
}

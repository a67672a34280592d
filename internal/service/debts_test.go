package service

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mrkadirov2005/shopPos/internal/domain"
	"github.com/mrkadirov2005/shopPos/internal/store"
)

func debtRequest(name string, amount string, branch int) domain.DebtCreateRequest {
	return domain.DebtCreateRequest{
		Name:         name,
		Amount:       money(amount),
		ProductNames: domain.ProductNameList{"Rice 5kg", "Soap Bar"},
		BranchID:     &branch,
	}
}

func TestDebtLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminContext()

	created, err := svc.CreateDebt(ctx, debtRequest("Aziz Karimov", "150.50", 1))
	if err != nil {
		t.Fatalf("create debt failed: %v", err)
	}
	if created.ShopID != "main-shop" || created.AdminID != "admin-1" {
		t.Fatalf("expected shop and admin from actor, got shop=%s admin=%s", created.ShopID, created.AdminID)
	}
	if created.Day != 14 || created.Month != 3 || created.Year != 2026 {
		t.Fatalf("expected calendar from clock, got %d-%d-%d", created.Year, created.Month, created.Day)
	}

	if _, err := svc.CreateDebt(ctx, debtRequest("Dilnoza", "20", 2)); err != nil {
		t.Fatalf("create debt failed: %v", err)
	}

	found, err := svc.ListDebts(ctx, domain.DebtFilter{Customer: "aziz"})
	if err != nil {
		t.Fatalf("list debts failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != created.ID {
		t.Fatalf("expected customer search to find one debt, got %+v", found)
	}

	branch := 2
	byBranch, err := svc.ListDebts(ctx, domain.DebtFilter{BranchID: &branch})
	if err != nil {
		t.Fatalf("list debts failed: %v", err)
	}
	if len(byBranch) != 1 || byBranch[0].Name != "Dilnoza" {
		t.Fatalf("expected one branch 2 debt, got %+v", byBranch)
	}

	returned, err := svc.MarkDebtReturned(ctx, created.ID)
	if err != nil {
		t.Fatalf("mark returned failed: %v", err)
	}
	if !returned.IsReturned {
		t.Fatalf("expected debt marked returned")
	}

	open, err := svc.ListDebts(ctx, domain.DebtFilter{UnreturnedOnly: true})
	if err != nil {
		t.Fatalf("list debts failed: %v", err)
	}
	if len(open) != 1 || open[0].Name != "Dilnoza" {
		t.Fatalf("expected one unreturned debt, got %+v", open)
	}

	stats, err := svc.DebtStatistics(ctx, "")
	if err != nil {
		t.Fatalf("debt statistics failed: %v", err)
	}
	if stats.TotalDebts != 2 || stats.ReturnedDebts != 1 || stats.UnreturnedDebts != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if !stats.TotalAmount.Equal(decimal.RequireFromString("170.50")) || !stats.UnreturnedAmount.Equal(decimal.RequireFromString("20")) {
		t.Fatalf("unexpected amounts: total=%s unreturned=%s", stats.TotalAmount, stats.UnreturnedAmount)
	}

	if err := svc.DeleteDebt(ctx, created.ID); err != nil {
		t.Fatalf("delete debt failed: %v", err)
	}
	if _, err := svc.GetDebt(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted debt to be gone, got %v", err)
	}
}

func TestCreateDebtValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminContext()

	tests := []struct {
		name  string
		req   domain.DebtCreateRequest
		field string
	}{
		{"missing name", debtRequest("", "10", 1), "name"},
		{"zero amount", debtRequest("Aziz", "0", 1), "amount"},
		{"negative amount", debtRequest("Aziz", "-5", 1), "amount"},
		{"no product names", func() domain.DebtCreateRequest {
			r := debtRequest("Aziz", "10", 1)
			r.ProductNames = nil
			return r
		}(), "product_names"},
		{"missing branch", func() domain.DebtCreateRequest {
			r := debtRequest("Aziz", "10", 1)
			r.BranchID = nil
			return r
		}(), "branch_id"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateDebt(ctx, tc.req)
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if validation.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, validation.Field)
			}
		})
	}
}

func TestUpdateDebtIsPartial(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminContext()

	created, err := svc.CreateDebt(ctx, debtRequest("Aziz", "10", 1))
	if err != nil {
		t.Fatalf("create debt failed: %v", err)
	}

	updated, err := svc.UpdateDebt(ctx, created.ID, domain.DebtUpdateRequest{Amount: money("12.75")})
	if err != nil {
		t.Fatalf("update debt failed: %v", err)
	}
	if updated.Name != "Aziz" || len(updated.ProductNames) != 2 {
		t.Fatalf("expected untouched fields kept, got %+v", updated)
	}
	if !updated.Amount.Equal(decimal.RequireFromString("12.75")) {
		t.Fatalf("expected amount 12.75, got %s", updated.Amount)
	}

	blank := "  "
	_, err = svc.UpdateDebt(ctx, created.ID, domain.DebtUpdateRequest{Name: &blank})
	var validation *ValidationError
	if !errors.As(err, &validation) || validation.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
}

func TestDebtHiddenFromOtherShopAdmin(t *testing.T) {
	svc, _ := newTestService()

	req := debtRequest("Aziz", "10", 1)
	req.ShopID = "branch-shop"
	created, err := svc.CreateDebt(superuserContext(), req)
	if err != nil {
		t.Fatalf("create debt failed: %v", err)
	}
	if _, err := svc.GetDebt(adminContext(), created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.DeleteDebt(adminContext(), created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestMarkDebtReturnedWritesOneAuditEvent(t *testing.T) {
	svc, repo := newTestService()
	ctx := adminContext()

	created, err := svc.CreateDebt(ctx, debtRequest("Aziz Karimov", "150.50", 1))
	if err != nil {
		t.Fatalf("create debt failed: %v", err)
	}
	before, _ := repo.ListAuditEvents(ctx, "main-shop", "admin-1", 50)

	if _, err := svc.MarkDebtReturned(ctx, created.ID); err != nil {
		t.Fatalf("mark returned failed: %v", err)
	}

	after, _ := repo.ListAuditEvents(ctx, "main-shop", "admin-1", 50)
	if len(after) != len(before)+1 {
		t.Fatalf("expected one new audit event, got %d", len(after)-len(before))
	}
	if after[0].Log != "Debt "+created.ID+" of Aziz Karimov marked as returned" {
		t.Fatalf("unexpected audit log: %q", after[0].Log)
	}
}

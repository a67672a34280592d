package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrkadirov2005/shopPos/internal/domain"
	"github.com/mrkadirov2005/shopPos/internal/store"
)

const integrationShopID = "shop-it"

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	databaseURL := os.Getenv("SHOPPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SHOPPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func seedIntegrationProduct(t *testing.T, s *Store, availability int) string {
	t.Helper()
	ctx := context.Background()

	id := fmt.Sprintf("prod-it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM soldproduct WHERE productid = $1`, id)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM product WHERE id = $1`, id)
	})

	_, err := s.CreateProduct(ctx, domain.Product{
		ID:           id,
		ShopID:       integrationShopID,
		Name:         "Integration Widget",
		CategoryID:   "cat",
		BrandID:      "brand",
		Scale:        "pcs",
		Availability: availability,
		Total:        availability,
		NetPrice:     decimal.NewFromInt(3),
		SellPrice:    decimal.NewFromInt(5),
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return id
}

func TestReserveStockConditionalUpdate(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	productID := seedIntegrationProduct(t, s, 5)

	err := s.RunInTx(ctx, func(tx store.SaleTx) error {
		remaining, err := tx.ReserveStock(ctx, integrationShopID, productID, 3)
		if err != nil {
			return err
		}
		if remaining != 2 {
			t.Fatalf("expected 2 remaining, got %d", remaining)
		}
		_, err = tx.ReserveStock(ctx, integrationShopID, productID, 3)
		return err
	})

	var shortfall *store.ShortfallError
	if !errors.As(err, &shortfall) {
		t.Fatalf("expected shortfall, got %v", err)
	}
	if shortfall.Available != 2 || shortfall.Requested != 3 {
		t.Fatalf("unexpected shortfall detail: %+v", shortfall)
	}

	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Availability != 5 {
		t.Fatalf("expected rolled back availability 5, got %d", product.Availability)
	}
}

func TestNewAppliesSchema(t *testing.T) {
	s := newIntegrationStore(t)

	var column string
	err := s.db.QueryRowContext(context.Background(), `
		SELECT column_name FROM information_schema.columns
		WHERE table_name = 'sales' AND column_name = 'sale_time'
	`).Scan(&column)
	if err != nil {
		t.Fatalf("expected sales.sale_time after New, got %v", err)
	}
}

func TestReserveStockIgnoresOtherShopsProduct(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	productID := seedIntegrationProduct(t, s, 5)

	err := s.RunInTx(ctx, func(tx store.SaleTx) error {
		_, err := tx.ReserveStock(ctx, "other-shop", productID, 1)
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for foreign shop, got %v", err)
	}

	product, _ := s.GetProduct(ctx, productID)
	if product.Availability != 5 {
		t.Fatalf("expected availability 5, got %d", product.Availability)
	}
}

func TestSaleCommitsHeaderAndItemsTogether(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	productID := seedIntegrationProduct(t, s, 10)
	saleID := fmt.Sprintf("sale-it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM soldproduct WHERE salesid = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE sale_id = $1`, saleID)
	})

	err := s.RunInTx(ctx, func(tx store.SaleTx) error {
		if _, err := tx.ReserveStock(ctx, integrationShopID, productID, 4); err != nil {
			return err
		}
		if _, err := tx.InsertSale(ctx, domain.Sale{
			ID:            saleID,
			ShopID:        integrationShopID,
			AdminNumber:   "A-1",
			AdminName:     "Tester",
			TotalPrice:    decimal.NewFromInt(20),
			TotalNetPrice: decimal.NewFromInt(12),
			Profit:        decimal.NewFromInt(8),
			PaymentMethod: "cash",
			SaleTime:      "14:05:00",
			Day:           15,
			Month:         10,
			Year:          2026,
		}); err != nil {
			return err
		}
		return tx.InsertSoldItem(ctx, domain.SoldItem{
			SaleID:      saleID,
			ProductID:   productID,
			ProductName: "Integration Widget",
			Quantity:    4,
			NetPrice:    decimal.NewFromInt(3),
			SellPrice:   decimal.NewFromInt(5),
			ShopID:      integrationShopID,
		})
	})
	if err != nil {
		t.Fatalf("run in tx: %v", err)
	}

	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(sale.Items) != 1 || sale.Items[0].Quantity != 4 {
		t.Fatalf("unexpected sale items: %+v", sale.Items)
	}
	if sale.SaleTime != "14:05:00" {
		t.Fatalf("expected sale time to be stored, got %q", sale.SaleTime)
	}
	product, _ := s.GetProduct(ctx, productID)
	if product.Availability != 6 {
		t.Fatalf("expected availability 6, got %d", product.Availability)
	}
}

func TestConcurrentReservationsOnlyOneWins(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	productID := seedIntegrationProduct(t, s, 5)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.RunInTx(ctx, func(tx store.SaleTx) error {
				_, err := tx.ReserveStock(ctx, integrationShopID, productID, 3)
				return err
			})
		}(i)
	}
	wg.Wait()

	successes, shortfalls := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, store.ErrInsufficientStock):
			shortfalls++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || shortfalls != 1 {
		t.Fatalf("expected one success and one shortfall, got %d/%d", successes, shortfalls)
	}

	product, _ := s.GetProduct(ctx, productID)
	if product.Availability != 2 {
		t.Fatalf("expected availability 2, got %d", product.Availability)
	}
}

func TestDebtProductNamesRoundTrip(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	id := fmt.Sprintf("debt-it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM debt_table WHERE id = $1`, id)
	})

	if _, err := s.CreateDebt(ctx, domain.Debt{
		ID:           id,
		Day:          1,
		Month:        2,
		Year:         2026,
		Name:         "Integration Customer",
		Amount:       decimal.RequireFromString("12.50"),
		ProductNames: []string{"Rice", "Tea"},
		BranchID:     1,
		ShopID:       integrationShopID,
		AdminID:      "admin-it",
	}); err != nil {
		t.Fatalf("create debt: %v", err)
	}

	debt, err := s.GetDebt(ctx, id)
	if err != nil {
		t.Fatalf("get debt: %v", err)
	}
	if len(debt.ProductNames) != 2 || debt.ProductNames[1] != "Tea" {
		t.Fatalf("unexpected product names: %v", debt.ProductNames)
	}
	if !debt.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected amount: %s", debt.Amount)
	}
}

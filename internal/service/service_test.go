package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrkadirov2005/shopPos/internal/audit"
	"github.com/mrkadirov2005/shopPos/internal/domain"
	"github.com/mrkadirov2005/shopPos/internal/store"
	"github.com/mrkadirov2005/shopPos/internal/store/memory"
)

var fixedNow = time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	svc := New(repo, audit.NewStoreSink(repo), nil, 0, memory.SeedShopID)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{
		ID:     "admin-1",
		Name:   "admin",
		Role:   domain.RoleAdmin,
		ShopID: memory.SeedShopID,
	})
}

func superuserContext() context.Context {
	return WithActor(context.Background(), domain.Actor{
		ID:     "superuser-1",
		Name:   "owner",
		Role:   domain.RoleSuperuser,
		ShopID: memory.SeedShopID,
	})
}

func money(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func saleItem(productID string, qty int) domain.SaleItemInput {
	return domain.SaleItemInput{
		ProductID:    productID,
		SellQuantity: &qty,
		ProductName:  productID,
		NetPrice:     decimal.RequireFromString("9.50"),
		SellPrice:    decimal.RequireFromString("12.00"),
	}
}

func saleRequest(items ...domain.SaleItemInput) domain.SaleSubmitRequest {
	return domain.SaleSubmitRequest{
		Sale: &domain.SaleHeaderInput{
			AdminNumber:   "998901234567",
			AdminName:     "Admin One",
			TotalPrice:    money("24.00"),
			TotalNetPrice: money("19.00"),
			Profit:        money("5.00"),
			PaymentMethod: "cash",
		},
		Products: items,
	}
}

func addProduct(t *testing.T, repo *memory.Store, id string, availability int) {
	t.Helper()
	addShopProduct(t, repo, memory.SeedShopID, id, availability)
}

func addShopProduct(t *testing.T, repo *memory.Store, shopID string, id string, availability int) {
	t.Helper()
	_, err := repo.CreateProduct(context.Background(), domain.Product{
		ID:           id,
		ShopID:       shopID,
		Name:         "Product " + id,
		Availability: availability,
		Total:        availability,
		NetPrice:     decimal.RequireFromString("1.00"),
		SellPrice:    decimal.RequireFromString("1.50"),
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("create product %s failed: %v", id, err)
	}
}

func availability(t *testing.T, repo *memory.Store, id string) int {
	t.Helper()
	product, err := repo.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("get product %s failed: %v", id, err)
	}
	return product.Availability
}

func salesCount(t *testing.T, repo *memory.Store) int {
	t.Helper()
	sales, err := repo.ListSales(context.Background(), memory.SeedShopID)
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	return len(sales)
}

func TestSubmitSaleConsumesExactAvailability(t *testing.T) {
	svc, repo := newTestService()
	addProduct(t, repo, "prod-x", 10)

	resp, err := svc.SubmitSale(adminContext(), saleRequest(saleItem("prod-x", 10)))
	if err != nil {
		t.Fatalf("submit sale failed: %v", err)
	}
	if resp.Message != "Sale created successfully" || resp.SaleID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got := availability(t, repo, "prod-x"); got != 0 {
		t.Fatalf("expected availability 0, got %d", got)
	}

	detail, err := svc.GetSale(adminContext(), resp.SaleID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if len(detail.Products) != 1 || detail.Products[0].Quantity != 10 {
		t.Fatalf("unexpected sold items: %+v", detail.Products)
	}
	if detail.Sale.ShopID != memory.SeedShopID {
		t.Fatalf("expected sale in %s, got %s", memory.SeedShopID, detail.Sale.ShopID)
	}
}

func TestSubmitSaleShortfallLeavesStockUntouched(t *testing.T) {
	svc, repo := newTestService()
	addProduct(t, repo, "prod-x", 3)

	_, err := svc.SubmitSale(adminContext(), saleRequest(saleItem("prod-x", 5)))

	var shortfall *store.ShortfallError
	if !errors.As(err, &shortfall) {
		t.Fatalf("expected shortfall, got %v", err)
	}
	if shortfall.ProductID != "prod-x" || shortfall.Available != 3 || shortfall.Requested != 5 {
		t.Fatalf("unexpected shortfall detail: %+v", shortfall)
	}
	if !strings.Contains(shortfall.Error(), "Available: 3, Requested: 5") {
		t.Fatalf("unexpected shortfall message: %s", shortfall.Error())
	}
	if got := availability(t, repo, "prod-x"); got != 3 {
		t.Fatalf("expected availability 3, got %d", got)
	}
	if n := salesCount(t, repo); n != 0 {
		t.Fatalf("expected no sales, got %d", n)
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	svc, repo := newTestService()
	addProduct(t, repo, "prod-x", 10)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SubmitSale(adminContext(), saleRequest(saleItem("prod-x", 6)))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var shortfall *store.ShortfallError
		if !errors.As(err, &shortfall) {
			t.Fatalf("expected shortfall for losing sale, got %v", err)
		}
		if shortfall.Available != 4 && shortfall.Available != 10 {
			t.Fatalf("unexpected available in shortfall: %d", shortfall.Available)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one sale to succeed, got %d", succeeded)
	}
	if got := availability(t, repo, "prod-x"); got != 4 {
		t.Fatalf("expected availability 4, got %d", got)
	}
	if n := salesCount(t, repo); n != 1 {
		t.Fatalf("expected one stored sale, got %d", n)
	}
}

func TestSubmitSaleRestoresEarlierReservationsOnShortfall(t *testing.T) {
	svc, repo := newTestService()
	addProduct(t, repo, "prod-x", 10)
	addProduct(t, repo, "prod-y", 1)

	_, err := svc.SubmitSale(adminContext(), saleRequest(saleItem("prod-x", 4), saleItem("prod-y", 2)))

	var shortfall *store.ShortfallError
	if !errors.As(err, &shortfall) {
		t.Fatalf("expected shortfall, got %v", err)
	}
	if shortfall.ProductID != "prod-y" {
		t.Fatalf("expected shortfall to name prod-y, got %s", shortfall.ProductID)
	}
	if got := availability(t, repo, "prod-x"); got != 10 {
		t.Fatalf("expected prod-x restored to 10, got %d", got)
	}
	if got := availability(t, repo, "prod-y"); got != 1 {
		t.Fatalf("expected prod-y untouched at 1, got %d", got)
	}
	if n := salesCount(t, repo); n != 0 {
		t.Fatalf("expected no sales, got %d", n)
	}
}

func TestSubmitSaleUnknownProductIsShortfall(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.SubmitSale(adminContext(), saleRequest(saleItem("missing", 1)))

	var shortfall *store.ShortfallError
	if !errors.As(err, &shortfall) {
		t.Fatalf("expected shortfall, got %v", err)
	}
	if shortfall.Available != 0 || shortfall.Requested != 1 {
		t.Fatalf("unexpected shortfall detail: %+v", shortfall)
	}
}

func TestSubmitSaleValidation(t *testing.T) {
	zero := 0
	tests := []struct {
		name   string
		mutate func(*domain.SaleSubmitRequest)
		field  string
	}{
		{"missing header", func(r *domain.SaleSubmitRequest) { r.Sale = nil }, "sale"},
		{"missing admin name", func(r *domain.SaleSubmitRequest) { r.Sale.AdminName = "" }, "sale.admin_name"},
		{"missing admin number", func(r *domain.SaleSubmitRequest) { r.Sale.AdminNumber = "" }, "sale.admin_number"},
		{"missing total price", func(r *domain.SaleSubmitRequest) { r.Sale.TotalPrice = nil }, "sale.total_price"},
		{"missing profit", func(r *domain.SaleSubmitRequest) { r.Sale.Profit = nil }, "sale.profit"},
		{"missing payment method", func(r *domain.SaleSubmitRequest) { r.Sale.PaymentMethod = "" }, "sale.payment_method"},
		{"no products", func(r *domain.SaleSubmitRequest) { r.Products = nil }, "products"},
		{"empty products", func(r *domain.SaleSubmitRequest) { r.Products = []domain.SaleItemInput{} }, "products"},
		{"missing product id", func(r *domain.SaleSubmitRequest) { r.Products[0].ProductID = "" }, "products[0].productid"},
		{"blank product id", func(r *domain.SaleSubmitRequest) { r.Products[0].ProductID = "   " }, "products[0].productid"},
		{"line item from another shop", func(r *domain.SaleSubmitRequest) { r.Products[0].ShopID = "other-shop" }, "products[0].shop_id"},
		{"missing quantity", func(r *domain.SaleSubmitRequest) { r.Products[0].SellQuantity = nil }, "products[0].sell_quantity"},
		{"zero quantity", func(r *domain.SaleSubmitRequest) { r.Products[0].SellQuantity = &zero }, "products[0].sell_quantity"},
		{"invalid month", func(r *domain.SaleSubmitRequest) {
			month := 13
			r.Sale.SalesMonth = &month
		}, "sale.sale_day"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo := newTestService()
			req := saleRequest(saleItem("prod-rice", 2))
			tc.mutate(&req)

			_, err := svc.SubmitSale(adminContext(), req)

			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if validation.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, validation.Field)
			}
			if !errors.Is(err, store.ErrInvalidTransaction) {
				t.Fatalf("expected validation error to unwrap to ErrInvalidTransaction")
			}
			if got := availability(t, repo, "prod-rice"); got != 40 {
				t.Fatalf("expected no stock change, got %d", got)
			}
		})
	}
}

func TestSubmitSaleRequiresResolvableShop(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.SubmitSale(context.Background(), saleRequest(saleItem("prod-rice", 1)))

	var validation *ValidationError
	if !errors.As(err, &validation) || validation.Field != "shop_id" {
		t.Fatalf("expected shop_id validation error, got %v", err)
	}
}

func TestSubmitSaleRejectsForeignShopForAdmin(t *testing.T) {
	svc, repo := newTestService()
	req := saleRequest(saleItem("prod-rice", 1))
	req.Sale.ShopID = "other-shop"

	_, err := svc.SubmitSale(adminContext(), req)
	if !errors.Is(err, ErrForbiddenShop) {
		t.Fatalf("expected ErrForbiddenShop, got %v", err)
	}
	if got := availability(t, repo, "prod-rice"); got != 40 {
		t.Fatalf("expected no stock change, got %d", got)
	}
}

func TestSubmitSaleCannotTakeStockFromAnotherShop(t *testing.T) {
	svc, repo := newTestService()
	addShopProduct(t, repo, "other-shop", "foreign", 10)

	_, err := svc.SubmitSale(adminContext(), saleRequest(saleItem("foreign", 7)))

	var shortfall *store.ShortfallError
	if !errors.As(err, &shortfall) {
		t.Fatalf("expected shortfall, got %v", err)
	}
	if shortfall.ProductID != "foreign" || shortfall.Available != 0 || shortfall.Requested != 7 {
		t.Fatalf("unexpected shortfall detail: %+v", shortfall)
	}
	if got := availability(t, repo, "foreign"); got != 10 {
		t.Fatalf("expected foreign availability 10, got %d", got)
	}
	if n := salesCount(t, repo); n != 0 {
		t.Fatalf("expected no sales, got %d", n)
	}
}

func TestSubmitSaleStoresSaleTimeAndSaleShopOnLines(t *testing.T) {
	svc, _ := newTestService()
	req := saleRequest(saleItem("prod-rice", 1))
	req.Sale.SaleTime = " 10:29:58 "
	req.Products[0].ShopID = memory.SeedShopID

	resp, err := svc.SubmitSale(adminContext(), req)
	if err != nil {
		t.Fatalf("submit sale failed: %v", err)
	}
	detail, err := svc.GetSale(adminContext(), resp.SaleID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if detail.Sale.SaleTime != "10:29:58" {
		t.Fatalf("expected sale time 10:29:58, got %q", detail.Sale.SaleTime)
	}
	if detail.Products[0].ShopID != memory.SeedShopID {
		t.Fatalf("expected line shop %s, got %s", memory.SeedShopID, detail.Products[0].ShopID)
	}
}

func TestSubmitSalePrefersSellQuantityOverAmount(t *testing.T) {
	svc, repo := newTestService()
	item := saleItem("prod-rice", 2)
	amount := 7
	item.Amount = &amount

	resp, err := svc.SubmitSale(adminContext(), saleRequest(item))
	if err != nil {
		t.Fatalf("submit sale failed: %v", err)
	}
	if got := availability(t, repo, "prod-rice"); got != 38 {
		t.Fatalf("expected availability 38, got %d", got)
	}

	detail, err := svc.GetSale(adminContext(), resp.SaleID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if detail.Products[0].Quantity != 2 {
		t.Fatalf("expected recorded quantity 2, got %d", detail.Products[0].Quantity)
	}
}

func TestSubmitSaleAcceptsAmountAlone(t *testing.T) {
	svc, repo := newTestService()
	item := saleItem("prod-oil", 0)
	amount := 3
	item.SellQuantity = nil
	item.Amount = &amount

	if _, err := svc.SubmitSale(adminContext(), saleRequest(item)); err != nil {
		t.Fatalf("submit sale failed: %v", err)
	}
	if got := availability(t, repo, "prod-oil"); got != 22 {
		t.Fatalf("expected availability 22, got %d", got)
	}
}

func TestSoldItemKeepsPriceSnapshot(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminContext()

	resp, err := svc.SubmitSale(ctx, saleRequest(saleItem("prod-rice", 1)))
	if err != nil {
		t.Fatalf("submit sale failed: %v", err)
	}
	if _, err := svc.UpdateProduct(ctx, "prod-rice", domain.ProductUpdateRequest{SellPrice: money("99.99")}); err != nil {
		t.Fatalf("update product failed: %v", err)
	}

	detail, err := svc.GetSale(ctx, resp.SaleID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if !detail.Products[0].SellPrice.Equal(decimal.RequireFromString("12.00")) {
		t.Fatalf("expected snapshot sell price 12.00, got %s", detail.Products[0].SellPrice)
	}
}

func TestSubmitSaleCalendarFromPayloadAndClock(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminContext()

	resp, err := svc.SubmitSale(ctx, saleRequest(saleItem("prod-rice", 1)))
	if err != nil {
		t.Fatalf("submit sale failed: %v", err)
	}
	detail, _ := svc.GetSale(ctx, resp.SaleID)
	if detail.Sale.Day != 14 || detail.Sale.Month != 3 || detail.Sale.Year != 2026 {
		t.Fatalf("expected clock calendar 2026-03-14, got %d-%d-%d", detail.Sale.Year, detail.Sale.Month, detail.Sale.Day)
	}

	req := saleRequest(saleItem("prod-rice", 1))
	day := 2
	req.Sale.SaleDay = &day
	resp, err = svc.SubmitSale(ctx, req)
	if err != nil {
		t.Fatalf("submit sale failed: %v", err)
	}
	detail, _ = svc.GetSale(ctx, resp.SaleID)
	if detail.Sale.Day != 2 || detail.Sale.Month != 3 {
		t.Fatalf("expected payload day 2 in March, got %d-%d", detail.Sale.Month, detail.Sale.Day)
	}
}

func TestResubmittedSaleCreatesSecondSale(t *testing.T) {
	svc, repo := newTestService()
	req := saleRequest(saleItem("prod-rice", 1))

	first, err := svc.SubmitSale(adminContext(), req)
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	second, err := svc.SubmitSale(adminContext(), req)
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if first.SaleID == second.SaleID {
		t.Fatalf("expected distinct sale ids")
	}
	if got := availability(t, repo, "prod-rice"); got != 38 {
		t.Fatalf("expected availability 38, got %d", got)
	}
}

type failingSink struct {
	calls int
}

func (f *failingSink) Record(_ context.Context, _ string, _ string, _ string) error {
	f.calls++
	return errors.New("audit table unavailable")
}

func TestAuditFailureDoesNotFailCommittedSale(t *testing.T) {
	repo := memory.NewSeeded()
	sink := &failingSink{}
	svc := New(repo, sink, nil, 0, memory.SeedShopID)

	resp, err := svc.SubmitSale(adminContext(), saleRequest(saleItem("prod-rice", 1)))
	if err != nil {
		t.Fatalf("expected sale to succeed despite audit failure, got %v", err)
	}
	if sink.calls != 1 {
		t.Fatalf("expected one audit attempt, got %d", sink.calls)
	}
	if _, err := repo.GetSale(context.Background(), resp.SaleID); err != nil {
		t.Fatalf("expected committed sale, got %v", err)
	}
}

func TestSubmitSaleRecordsOneAuditEvent(t *testing.T) {
	svc, repo := newTestService()

	resp, err := svc.SubmitSale(adminContext(), saleRequest(saleItem("prod-rice", 1)))
	if err != nil {
		t.Fatalf("submit sale failed: %v", err)
	}

	events, err := repo.ListAuditEvents(context.Background(), memory.SeedShopID, "admin-1", 10)
	if err != nil {
		t.Fatalf("list audit events failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one audit event, got %d", len(events))
	}
	if !strings.Contains(events[0].Log, resp.SaleID) {
		t.Fatalf("expected audit log to name sale %s, got %q", resp.SaleID, events[0].Log)
	}
}

type failingInsertRepo struct {
	*memory.Store
}

func (r failingInsertRepo) RunInTx(ctx context.Context, fn func(tx store.SaleTx) error) error {
	return r.Store.RunInTx(ctx, func(tx store.SaleTx) error {
		return fn(failingInsertTx{SaleTx: tx})
	})
}

type failingInsertTx struct {
	store.SaleTx
}

func (failingInsertTx) InsertSale(_ context.Context, _ domain.Sale) (*domain.Sale, error) {
	return nil, errors.New("connection reset by peer")
}

func TestStorageFailureRollsBackReservations(t *testing.T) {
	repo := memory.NewSeeded()
	svc := New(failingInsertRepo{Store: repo}, nil, nil, 0, memory.SeedShopID)

	_, err := svc.SubmitSale(adminContext(), saleRequest(saleItem("prod-rice", 5), saleItem("prod-oil", 2)))

	var storage *StorageError
	if !errors.As(err, &storage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	var shortfall *store.ShortfallError
	if errors.As(err, &shortfall) {
		t.Fatalf("storage error must not look like a shortfall")
	}
	if got := availability(t, repo, "prod-rice"); got != 40 {
		t.Fatalf("expected prod-rice restored to 40, got %d", got)
	}
	if got := availability(t, repo, "prod-oil"); got != 25 {
		t.Fatalf("expected prod-oil restored to 25, got %d", got)
	}
	if n := salesCount(t, repo); n != 0 {
		t.Fatalf("expected no sales, got %d", n)
	}
}

func TestGetSaleHidesOtherShops(t *testing.T) {
	svc, repo := newTestService()
	addShopProduct(t, repo, "branch-shop", "branch-rice", 5)
	req := saleRequest(saleItem("branch-rice", 1))
	req.ShopID = "branch-shop"

	resp, err := svc.SubmitSale(superuserContext(), req)
	if err != nil {
		t.Fatalf("submit sale failed: %v", err)
	}
	if _, err := svc.GetSale(superuserContext(), resp.SaleID); err != nil {
		t.Fatalf("superuser should read any shop, got %v", err)
	}
	if _, err := svc.GetSale(adminContext(), resp.SaleID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for admin of another shop, got %v", err)
	}
}

func TestGetSaleUnknownID(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.GetSale(adminContext(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListSalesNewestFirst(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminContext()

	first, _ := svc.SubmitSale(ctx, saleRequest(saleItem("prod-rice", 1)))
	second, _ := svc.SubmitSale(ctx, saleRequest(saleItem("prod-oil", 1)))

	sales, err := svc.ListSales(ctx, "")
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales) != 2 || sales[0].ID != second.SaleID || sales[1].ID != first.SaleID {
		t.Fatalf("expected newest first, got %+v", sales)
	}
	if _, err := svc.ListSales(ctx, "other-shop"); !errors.Is(err, ErrForbiddenShop) {
		t.Fatalf("expected ErrForbiddenShop, got %v", err)
	}
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (c *fakeCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.data, key)
		c.deleted = append(c.deleted, key)
	}
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

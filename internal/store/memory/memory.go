package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrkadirov2005/shopPos/internal/domain"
	"github.com/mrkadirov2005/shopPos/internal/store"
)

// SeedShopID is the tenant NewSeeded populates.
const SeedShopID = "main-shop"

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	salesByID       map[string]*domain.Sale
	saleOrder       []string
	nextItemID      int64
	debtsByID       map[string]domain.Debt
	auditEvents     []domain.AuditEvent
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		salesByID:       make(map[string]*domain.Sale),
		debtsByID:       make(map[string]domain.Debt),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory admin accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_SUPERUSER_PASSWORD.
// If unset, dev defaults are used with a warning. The backend uses
// PostgreSQL when DATABASE_URL is set, so these never reach production.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	superPwd := envOr("SEED_SUPERUSER_PASSWORD", "superuser123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SUPERUSER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SUPERUSER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		id       string
		username string
		password string
		role     string
	}{
		{"admin-1", "admin", adminPwd, domain.RoleAdmin},
		{"superuser-1", "owner", superPwd, domain.RoleSuperuser},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			ID:        u.id,
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			ShopID:    SeedShopID,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	seed := []struct {
		id, name, category, scale string
		availability, total       int
		net, sell                 string
	}{
		{"prod-rice", "Rice 5kg", "grocery", "pcs", 40, 50, "9.50", "12.00"},
		{"prod-oil", "Sunflower Oil 1L", "grocery", "pcs", 25, 30, "2.10", "2.90"},
		{"prod-sugar", "Sugar 1kg", "grocery", "kg", 60, 60, "0.80", "1.10"},
		{"prod-tea", "Green Tea 100g", "beverage", "pcs", 12, 40, "1.40", "2.25"},
		{"prod-soap", "Soap Bar", "household", "pcs", 80, 100, "0.35", "0.60"},
	}

	s := New()
	for _, p := range seed {
		s.products[p.id] = domain.Product{
			ID:           p.id,
			ShopID:       SeedShopID,
			Name:         p.name,
			CategoryID:   p.category,
			BrandID:      "house",
			Scale:        p.scale,
			Availability: p.availability,
			Total:        p.total,
			NetPrice:     decimal.RequireFromString(p.net),
			SellPrice:    decimal.RequireFromString(p.sell),
			CostPrice:    decimal.RequireFromString(p.net),
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	s.usersByUsername = seedUsers()
	return s
}

// RunInTx holds the write lock for the whole unit of work, which gives the
// same isolation the conditional update gives in Postgres.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.SaleTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) ReserveStock(ctx context.Context, shopID string, productID string, qty int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if qty < 1 {
		return 0, store.ErrInvalidTransaction
	}

	product, ok := t.s.products[productID]
	if !ok || product.ShopID != shopID {
		return 0, store.ErrNotFound
	}
	if product.Availability < qty {
		return 0, &store.ShortfallError{
			ProductID:   productID,
			ProductName: product.Name,
			Requested:   qty,
			Available:   product.Availability,
		}
	}

	product.Availability -= qty
	t.s.products[productID] = product
	t.undo = append(t.undo, func() {
		p := t.s.products[productID]
		p.Availability += qty
		t.s.products[productID] = p
	})
	return product.Availability, nil
}

func (t *memTx) InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sale.ID == "" || sale.ShopID == "" {
		return nil, store.ErrInvalidTransaction
	}
	if _, exists := t.s.salesByID[sale.ID]; exists {
		return nil, store.ErrInvalidTransaction
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	stored := cloneSale(sale)
	stored.Items = nil
	t.s.salesByID[sale.ID] = &stored
	t.s.saleOrder = append(t.s.saleOrder, sale.ID)
	t.undo = append(t.undo, func() {
		delete(t.s.salesByID, sale.ID)
		t.s.saleOrder = t.s.saleOrder[:len(t.s.saleOrder)-1]
	})

	out := cloneSale(stored)
	return &out, nil
}

func (t *memTx) InsertSoldItem(ctx context.Context, item domain.SoldItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sale, ok := t.s.salesByID[item.SaleID]
	if !ok || item.ProductID == "" || item.Quantity < 1 {
		return store.ErrInvalidTransaction
	}

	t.s.nextItemID++
	item.ID = t.s.nextItemID
	sale.Items = append(sale.Items, item)
	t.undo = append(t.undo, func() {
		sale.Items = sale.Items[:len(sale.Items)-1]
		t.s.nextItemID--
	})
	return nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.ShopID == "" || product.Name == "" || product.Availability < 0 {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidTransaction
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	s.products[product.ID] = product

	out := cloneProduct(product)
	return &out, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneProduct(product)
	return &out, nil
}

func (s *Store) ListProducts(_ context.Context, shopID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if shopID != "" && p.ShopID != shopID {
			continue
		}
		products = append(products, cloneProduct(p))
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return products, nil
}

// UpdateProduct keeps the stored availability and total; those only move
// through Restock and ReserveStock.
func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.ShopID = existing.ShopID
	product.Availability = existing.Availability
	product.Total = existing.Total
	product.LastRestockedAt = existing.LastRestockedAt
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product

	out := cloneProduct(product)
	return &out, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) Restock(_ context.Context, id string, added int, newTotal int, at time.Time) (*domain.Product, error) {
	if added < 1 || newTotal < 0 {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.Availability += added
	product.Total = newTotal
	restockedAt := at.UTC()
	product.LastRestockedAt = &restockedAt
	product.UpdatedAt = restockedAt
	s.products[id] = product

	out := cloneProduct(product)
	return &out, nil
}

func (s *Store) ListStockRanking(_ context.Context, shopID string, highest bool, limit int) ([]domain.Product, error) {
	products, _ := s.ListProducts(context.Background(), shopID)
	slices.SortStableFunc(products, func(a, b domain.Product) int {
		da, db := a.Total-a.Availability, b.Total-b.Availability
		if da == db {
			return 0
		}
		if (da > db) == highest {
			return -1
		}
		return 1
	})
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (s *Store) GetSale(_ context.Context, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneSale(*sale)
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, shopID string) ([]domain.Sale, error) {
	return s.collectSales(func(sale *domain.Sale) bool {
		return sale.ShopID == shopID
	}), nil
}

func (s *Store) ListSalesByDay(_ context.Context, shopID string, day domain.CalendarDay) ([]domain.Sale, error) {
	return s.collectSales(func(sale *domain.Sale) bool {
		return sale.ShopID == shopID && sale.Day == day.Day && sale.Month == day.Month && sale.Year == day.Year
	}), nil
}

func (s *Store) SumSales(_ context.Context, shopID string, day *domain.CalendarDay) (domain.SalesTotals, error) {
	sales := s.collectSales(func(sale *domain.Sale) bool {
		if sale.ShopID != shopID {
			return false
		}
		return day == nil || (sale.Day == day.Day && sale.Month == day.Month && sale.Year == day.Year)
	})

	totals := domain.SalesTotals{}
	for _, sale := range sales {
		totals.Sale = totals.Sale.Add(sale.TotalPrice)
		totals.NetSale = totals.NetSale.Add(sale.TotalNetPrice)
		totals.Profit = totals.Profit.Add(sale.Profit)
		totals.Count++
	}
	return totals, nil
}

// collectSales returns matching sale headers, newest first.
func (s *Store) collectSales(match func(*domain.Sale) bool) []domain.Sale {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, 16)
	for i := len(s.saleOrder) - 1; i >= 0; i-- {
		sale := s.salesByID[s.saleOrder[i]]
		if sale == nil || !match(sale) {
			continue
		}
		header := cloneSale(*sale)
		header.Items = nil
		out = append(out, header)
	}
	return out
}

func (s *Store) CreateDebt(_ context.Context, debt domain.Debt) (*domain.Debt, error) {
	if debt.ID == "" || debt.ShopID == "" || debt.Name == "" {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.debtsByID[debt.ID]; exists {
		return nil, store.ErrInvalidTransaction
	}
	s.debtsByID[debt.ID] = cloneDebt(debt)

	out := cloneDebt(debt)
	return &out, nil
}

func (s *Store) GetDebt(_ context.Context, id string) (*domain.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	debt, ok := s.debtsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneDebt(debt)
	return &out, nil
}

func (s *Store) ListDebts(_ context.Context, filter domain.DebtFilter) ([]domain.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer := strings.ToLower(strings.TrimSpace(filter.Customer))
	out := make([]domain.Debt, 0, len(s.debtsByID))
	for _, debt := range s.debtsByID {
		if filter.ShopID != "" && debt.ShopID != filter.ShopID {
			continue
		}
		if filter.BranchID != nil && debt.BranchID != *filter.BranchID {
			continue
		}
		if customer != "" && !strings.Contains(strings.ToLower(debt.Name), customer) {
			continue
		}
		if filter.UnreturnedOnly && debt.IsReturned {
			continue
		}
		out = append(out, cloneDebt(debt))
	}
	slices.SortFunc(out, compareDebtNewestFirst)
	return out, nil
}

func (s *Store) UpdateDebt(_ context.Context, debt domain.Debt) (*domain.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.debtsByID[debt.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	debt.ShopID = existing.ShopID
	s.debtsByID[debt.ID] = cloneDebt(debt)

	out := cloneDebt(debt)
	return &out, nil
}

func (s *Store) DeleteDebt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.debtsByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.debtsByID, id)
	return nil
}

func (s *Store) DebtStatistics(_ context.Context, shopID string) (domain.DebtStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.DebtStatistics{}
	for _, debt := range s.debtsByID {
		if debt.ShopID != shopID {
			continue
		}
		stats.TotalDebts++
		stats.TotalAmount = stats.TotalAmount.Add(debt.Amount)
		if debt.IsReturned {
			stats.ReturnedDebts++
			stats.ReturnedAmount = stats.ReturnedAmount.Add(debt.Amount)
		} else {
			stats.UnreturnedDebts++
			stats.UnreturnedAmount = stats.UnreturnedAmount.Add(debt.Amount)
		}
	}
	return stats, nil
}

func (s *Store) CreateAuditEvent(_ context.Context, event domain.AuditEvent) error {
	if event.ID == "" || event.ShopID == "" {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditEvents = append(s.auditEvents, event)
	return nil
}

func (s *Store) ListAuditEvents(_ context.Context, shopID string, targetID string, limit int) ([]domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditEvent, 0, 32)
	for i := len(s.auditEvents) - 1; i >= 0; i-- {
		event := s.auditEvents[i]
		if event.ShopID != shopID {
			continue
		}
		if targetID != "" && event.TargetID != targetID {
			continue
		}
		out = append(out, event)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func compareDebtNewestFirst(a, b domain.Debt) int {
	if a.Year != b.Year {
		return b.Year - a.Year
	}
	if a.Month != b.Month {
		return b.Month - a.Month
	}
	if a.Day != b.Day {
		return b.Day - a.Day
	}
	return strings.Compare(a.Name, b.Name)
}

func cloneProduct(src domain.Product) domain.Product {
	out := src
	if src.Branch != nil {
		branch := *src.Branch
		out.Branch = &branch
	}
	if src.LastRestockedAt != nil {
		at := *src.LastRestockedAt
		out.LastRestockedAt = &at
	}
	return out
}

func cloneSale(src domain.Sale) domain.Sale {
	out := src
	if src.Branch != nil {
		branch := *src.Branch
		out.Branch = &branch
	}
	out.Items = append([]domain.SoldItem(nil), src.Items...)
	return out
}

func cloneDebt(src domain.Debt) domain.Debt {
	out := src
	out.ProductNames = append([]string(nil), src.ProductNames...)
	return out
}

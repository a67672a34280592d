package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrkadirov2005/shopPos/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// ShortfallError reports a reservation that could not be satisfied. The
// product row is left untouched.
type ShortfallError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *ShortfallError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("Not enough stock for product '%s'. Available: %d, Requested: %d", name, e.Available, e.Requested)
}

func (e *ShortfallError) Unwrap() error {
	return ErrInsufficientStock
}

// SaleTx is the unit of work a sale runs in. Everything written through it
// becomes visible together on commit or not at all.
type SaleTx interface {
	// ReserveStock decrements availability by qty only if the product belongs
	// to shopID and at least qty is available, and returns the new
	// availability. A missing or foreign product yields ErrNotFound, an
	// insufficient one a *ShortfallError.
	ReserveStock(ctx context.Context, shopID string, productID string, qty int) (int, error)
	InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	InsertSoldItem(ctx context.Context, item domain.SoldItem) error
}

type Repository interface {
	// RunInTx runs fn in a single unit of work. The unit is committed when fn
	// returns nil and rolled back otherwise.
	RunInTx(ctx context.Context, fn func(tx SaleTx) error) error

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, shopID string) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	Restock(ctx context.Context, id string, added int, newTotal int, at time.Time) (*domain.Product, error)
	ListStockRanking(ctx context.Context, shopID string, highest bool, limit int) ([]domain.Product, error)

	GetSale(ctx context.Context, saleID string) (*domain.Sale, error)
	ListSales(ctx context.Context, shopID string) ([]domain.Sale, error)
	ListSalesByDay(ctx context.Context, shopID string, day domain.CalendarDay) ([]domain.Sale, error)
	SumSales(ctx context.Context, shopID string, day *domain.CalendarDay) (domain.SalesTotals, error)

	CreateDebt(ctx context.Context, debt domain.Debt) (*domain.Debt, error)
	GetDebt(ctx context.Context, id string) (*domain.Debt, error)
	ListDebts(ctx context.Context, filter domain.DebtFilter) ([]domain.Debt, error)
	UpdateDebt(ctx context.Context, debt domain.Debt) (*domain.Debt, error)
	DeleteDebt(ctx context.Context, id string) error
	DebtStatistics(ctx context.Context, shopID string) (domain.DebtStatistics, error)

	CreateAuditEvent(ctx context.Context, event domain.AuditEvent) error
	ListAuditEvents(ctx context.Context, shopID string, targetID string, limit int) ([]domain.AuditEvent, error)

	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

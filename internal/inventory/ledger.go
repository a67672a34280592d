// Package inventory owns every change to a product's availability.
// Availability goes down only through Reserve and up only through Restock.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrkadirov2005/shopPos/internal/domain"
	"github.com/mrkadirov2005/shopPos/internal/store"
)

type Restocker interface {
	Restock(ctx context.Context, id string, added int, newTotal int, at time.Time) (*domain.Product, error)
}

type Ledger struct {
	restocker Restocker
	now       func() time.Time
}

func NewLedger(restocker Restocker) *Ledger {
	return &Ledger{
		restocker: restocker,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Reserve takes qty units of a shop's product inside tx. A product that does
// not exist in that shop is reported as a shortfall with nothing available.
func (l *Ledger) Reserve(ctx context.Context, tx store.SaleTx, shopID string, productID string, productName string, qty int) (int, error) {
	if qty < 1 {
		return 0, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidTransaction)
	}

	remaining, err := tx.ReserveStock(ctx, shopID, productID, qty)
	if err == nil {
		return remaining, nil
	}

	var shortfall *store.ShortfallError
	switch {
	case errors.As(err, &shortfall):
		if shortfall.ProductName == "" {
			shortfall.ProductName = productName
		}
		return 0, shortfall
	case errors.Is(err, store.ErrNotFound):
		return 0, &store.ShortfallError{
			ProductID:   productID,
			ProductName: productName,
			Requested:   qty,
			Available:   0,
		}
	default:
		return 0, err
	}
}

// Restock adds stock and records the new running total. Two identical calls
// add twice.
func (l *Ledger) Restock(ctx context.Context, productID string, added int, newTotal int) (*domain.Product, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product id required", store.ErrInvalidTransaction)
	}
	if added < 1 {
		return nil, fmt.Errorf("%w: added quantity must be at least 1", store.ErrInvalidTransaction)
	}
	if newTotal < 0 {
		return nil, fmt.Errorf("%w: total must not be negative", store.ErrInvalidTransaction)
	}
	return l.restocker.Restock(ctx, productID, added, newTotal, l.now())
}

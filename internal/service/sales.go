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

const saleCreatedMessage = "Sale created successfully"

// SubmitSale validates the payload, then reserves stock for every line in
// submitted order and writes the sale with its lines in one unit of work.
// The first shortfall aborts the whole sale. Audit and cache invalidation
// happen only after commit and never fail the sale.
func (s *Service) SubmitSale(ctx context.Context, req domain.SaleSubmitRequest) (domain.SaleSubmitResponse, error) {
	sale, items, err := s.normalizeSale(ctx, req)
	if err != nil {
		return domain.SaleSubmitResponse{}, err
	}

	err = s.repo.RunInTx(ctx, func(tx store.SaleTx) error {
		for _, item := range items {
			if _, err := s.ledger.Reserve(ctx, tx, sale.ShopID, item.ProductID, item.ProductName, item.Quantity); err != nil {
				return err
			}
		}
		if _, err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		for _, item := range items {
			if err := tx.InsertSoldItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.SaleSubmitResponse{}, classify("submit sale", err)
	}

	s.logAudit(ctx, sale.ShopID, actorID(ctx, sale.AdminNumber), fmt.Sprintf(
		"Sale %s created by %s: %d products, total %s, payment %s",
		sale.ID, sale.AdminName, len(items), sale.TotalPrice.StringFixed(2), sale.PaymentMethod,
	))
	s.invalidateStats(ctx, sale.ShopID, domain.CalendarDay{Day: sale.Day, Month: sale.Month, Year: sale.Year})

	return domain.SaleSubmitResponse{Message: saleCreatedMessage, SaleID: sale.ID}, nil
}

// normalizeSale turns the wire payload into the header and lines to persist.
// It has no side effects.
func (s *Service) normalizeSale(ctx context.Context, req domain.SaleSubmitRequest) (domain.Sale, []domain.SoldItem, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return domain.Sale{}, nil, missingField(errs[0].FailedField)
	}

	header := req.Sale
	shopID := firstNonEmpty(header.ShopID, req.ShopID)
	if shopID == "" {
		if actor, ok := ActorFromContext(ctx); ok {
			shopID = actor.ShopID
		}
	}
	if shopID == "" {
		return domain.Sale{}, nil, missingField("shop_id")
	}
	if !canSeeShop(ctx, shopID) {
		return domain.Sale{}, nil, ErrForbiddenShop
	}

	now := s.now()
	day := domain.CalendarDayOf(now)
	if header.SaleDay != nil {
		day.Day = *header.SaleDay
	}
	if header.SalesMonth != nil {
		day.Month = *header.SalesMonth
	}
	if header.SalesYear != nil {
		day.Year = *header.SalesYear
	}
	if !day.Valid() {
		return domain.Sale{}, nil, invalidField("sale.sale_day", "invalid sale date %d-%d-%d", day.Year, day.Month, day.Day)
	}

	sale := domain.Sale{
		ID:            uuid.NewString(),
		ShopID:        shopID,
		Branch:        header.Branch,
		AdminNumber:   strings.TrimSpace(header.AdminNumber),
		AdminName:     strings.TrimSpace(header.AdminName),
		TotalPrice:    *header.TotalPrice,
		TotalNetPrice: *header.TotalNetPrice,
		Profit:        *header.Profit,
		PaymentMethod: strings.TrimSpace(header.PaymentMethod),
		SaleTime:      strings.TrimSpace(header.SaleTime),
		Day:           day.Day,
		Month:         day.Month,
		Year:          day.Year,
		CreatedAt:     now,
	}

	items := make([]domain.SoldItem, 0, len(req.Products))
	for i, in := range req.Products {
		productID := strings.TrimSpace(in.ProductID)
		if productID == "" {
			return domain.Sale{}, nil, missingField(fmt.Sprintf("products[%d].productid", i))
		}
		if itemShop := strings.TrimSpace(in.ShopID); itemShop != "" && itemShop != shopID {
			return domain.Sale{}, nil, invalidField(fmt.Sprintf("products[%d].shop_id", i), "line item shop %q does not match sale shop %q", itemShop, shopID)
		}
		qty := in.Quantity()
		if in.SellQuantity == nil && in.Amount == nil {
			return domain.Sale{}, nil, missingField(fmt.Sprintf("products[%d].sell_quantity", i))
		}
		if qty < 1 {
			return domain.Sale{}, nil, invalidField(fmt.Sprintf("products[%d].sell_quantity", i), "quantity must be a positive integer")
		}
		items = append(items, domain.SoldItem{
			SaleID:      sale.ID,
			ProductID:   productID,
			ProductName: strings.TrimSpace(in.ProductName),
			Quantity:    qty,
			NetPrice:    in.NetPrice,
			SellPrice:   in.SellPrice,
			ShopID:      shopID,
		})
	}

	return sale, items, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.SaleDetail, error) {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.SaleDetail{}, missingField("sale_id")
	}

	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return domain.SaleDetail{}, classify("get sale", err)
	}
	if !canSeeShop(ctx, sale.ShopID) {
		return domain.SaleDetail{}, store.ErrNotFound
	}

	items := sale.Items
	if items == nil {
		items = []domain.SoldItem{}
	}
	header := *sale
	header.Items = nil
	return domain.SaleDetail{Sale: header, Products: items}, nil
}

func (s *Service) ListSales(ctx context.Context, shopID string) ([]domain.Sale, error) {
	shopID, err := s.scopedShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSales(ctx, shopID)
	if err != nil {
		return nil, classify("list sales", err)
	}
	return sales, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

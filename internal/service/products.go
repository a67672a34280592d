package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mrkadirov2005/shopPos/internal/domain"
	"github.com/mrkadirov2005/shopPos/internal/store"
	"github.com/mrkadirov2005/shopPos/internal/validator"
)

const stockRankingLimit = 5

func (s *Service) ListProducts(ctx context.Context, shopID string) ([]domain.Product, error) {
	shopID, err := s.scopedShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx, shopID)
	if err != nil {
		return nil, classify("list products", err)
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, classify("get product", err)
	}
	if !canSeeShop(ctx, product.ShopID) {
		return domain.Product{}, store.ErrNotFound
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return domain.Product{}, missingField(errs[0].FailedField)
	}
	shopID, err := s.scopedShop(ctx, req.ShopID)
	if err != nil {
		return domain.Product{}, err
	}
	if !req.NetPrice.IsPositive() {
		return domain.Product{}, invalidField("net_price", "net_price must be positive")
	}
	if !req.SellPrice.IsPositive() {
		return domain.Product{}, invalidField("sell_price", "sell_price must be positive")
	}
	cost := decimal.Zero
	if req.CostPrice != nil {
		if req.CostPrice.IsNegative() {
			return domain.Product{}, invalidField("cost_price", "cost_price must not be negative")
		}
		cost = *req.CostPrice
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:           uuid.NewString(),
		ShopID:       shopID,
		Branch:       req.Branch,
		Name:         strings.TrimSpace(req.Name),
		CategoryID:   strings.TrimSpace(req.CategoryID),
		BrandID:      strings.TrimSpace(req.BrandID),
		Scale:        strings.TrimSpace(req.Scale),
		Availability: *req.Availability,
		Total:        *req.Total,
		NetPrice:     *req.NetPrice,
		SellPrice:    *req.SellPrice,
		CostPrice:    cost,
		Supplier:     strings.TrimSpace(req.Supplier),
		Description:  strings.TrimSpace(req.Description),
		IsActive:     true,
	})
	if err != nil {
		return domain.Product{}, classify("create product", err)
	}

	s.logAudit(ctx, shopID, actorID(ctx, ""), fmt.Sprintf("Product %s (%s) created with availability %d", created.Name, created.ID, created.Availability))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := existing
	for _, f := range []struct {
		field string
		in    *string
		out   *string
	}{
		{"name", req.Name, &updated.Name},
		{"category_id", req.CategoryID, &updated.CategoryID},
		{"brand_id", req.BrandID, &updated.BrandID},
		{"scale", req.Scale, &updated.Scale},
	} {
		if f.in == nil {
			continue
		}
		value := strings.TrimSpace(*f.in)
		if value == "" {
			return domain.Product{}, missingField(f.field)
		}
		*f.out = value
	}
	if req.NetPrice != nil {
		if !req.NetPrice.IsPositive() {
			return domain.Product{}, invalidField("net_price", "net_price must be positive")
		}
		updated.NetPrice = *req.NetPrice
	}
	if req.SellPrice != nil {
		if !req.SellPrice.IsPositive() {
			return domain.Product{}, invalidField("sell_price", "sell_price must be positive")
		}
		updated.SellPrice = *req.SellPrice
	}
	if req.CostPrice != nil {
		if req.CostPrice.IsNegative() {
			return domain.Product{}, invalidField("cost_price", "cost_price must not be negative")
		}
		updated.CostPrice = *req.CostPrice
	}
	if req.Supplier != nil {
		updated.Supplier = strings.TrimSpace(*req.Supplier)
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, classify("update product", err)
	}

	s.logAudit(ctx, saved.ShopID, actorID(ctx, ""), fmt.Sprintf("Product %s (%s) updated", saved.Name, saved.ID))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	existing, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, existing.ID); err != nil {
		return classify("delete product", err)
	}

	s.logAudit(ctx, existing.ShopID, actorID(ctx, ""), fmt.Sprintf("Product %s (%s) deleted", existing.Name, existing.ID))
	return nil
}

func (s *Service) RestockProduct(ctx context.Context, id string, req domain.RestockRequest) (domain.Product, error) {
	if req.AddedQuantity < 1 {
		return domain.Product{}, invalidField("added_quantity", "added_quantity must be at least 1")
	}
	if req.Total == nil {
		return domain.Product{}, missingField("total")
	}
	if *req.Total < 0 {
		return domain.Product{}, invalidField("total", "total must not be negative")
	}
	existing, err := s.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	product, err := s.ledger.Restock(ctx, existing.ID, req.AddedQuantity, *req.Total)
	if err != nil {
		return domain.Product{}, classify("restock product", err)
	}

	s.logAudit(ctx, product.ShopID, actorID(ctx, ""), fmt.Sprintf("Product %s (%s) restocked by %d, availability %d", product.Name, product.ID, req.AddedQuantity, product.Availability))
	return *product, nil
}

func (s *Service) HighStockProducts(ctx context.Context, shopID string) ([]domain.Product, error) {
	return s.stockRanking(ctx, shopID, true)
}

func (s *Service) LowStockProducts(ctx context.Context, shopID string) ([]domain.Product, error) {
	return s.stockRanking(ctx, shopID, false)
}

func (s *Service) stockRanking(ctx context.Context, shopID string, highest bool) ([]domain.Product, error) {
	shopID, err := s.scopedShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListStockRanking(ctx, shopID, highest, stockRankingLimit)
	if err != nil {
		return nil, classify("stock ranking", err)
	}
	return products, nil
}

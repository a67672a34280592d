package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mrkadirov2005/shopPos/internal/domain"
	"github.com/mrkadirov2005/shopPos/internal/store"
)

// Schema is the DDL the store expects. New applies it; every statement is
// idempotent.
//
//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx store.SaleTx) error) error {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := fn(&saleTx{tx: pgTx}); err != nil {
		return err
	}
	return pgTx.Commit()
}

type saleTx struct {
	tx *sql.Tx
}

// ReserveStock relies on the row lock taken by the conditional UPDATE, so
// two concurrent reservations can never both pass the availability check.
// A product owned by another shop is treated as missing.
func (t *saleTx) ReserveStock(ctx context.Context, shopID string, productID string, qty int) (int, error) {
	if qty < 1 {
		return 0, store.ErrInvalidTransaction
	}

	var remaining int
	err := t.tx.QueryRowContext(ctx, `
		UPDATE product
		SET availability = availability - $1, updatedat = now()
		WHERE id = $2 AND shop_id = $3 AND availability >= $1
		RETURNING availability
	`, qty, productID, shopID).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	var name string
	var available int
	err = t.tx.QueryRowContext(ctx, `
		SELECT name, availability
		FROM product
		WHERE id = $1 AND shop_id = $2
	`, productID, shopID).Scan(&name, &available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return 0, &store.ShortfallError{
		ProductID:   productID,
		ProductName: name,
		Requested:   qty,
		Available:   available,
	}
}

func (t *saleTx) InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || sale.ShopID == "" {
		return nil, store.ErrInvalidTransaction
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO sales (
			sale_id, admin_number, admin_name, total_price, total_net_price, profit,
			payment_method, sale_time, sale_day, sales_month, sales_year, branch, shop_id, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at
	`,
		sale.ID, sale.AdminNumber, sale.AdminName, sale.TotalPrice, sale.TotalNetPrice, sale.Profit,
		sale.PaymentMethod, nullString(sale.SaleTime), sale.Day, sale.Month, sale.Year, nullInt(sale.Branch), sale.ShopID, sale.CreatedAt,
	).Scan(&sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.Items = nil
	return &sale, nil
}

func (t *saleTx) InsertSoldItem(ctx context.Context, item domain.SoldItem) error {
	if item.SaleID == "" || item.ProductID == "" || item.Quantity < 1 {
		return store.ErrInvalidTransaction
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO soldproduct (salesid, productid, product_name, amount, net_price, sell_price, shop_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, item.SaleID, item.ProductID, item.ProductName, item.Quantity, item.NetPrice, item.SellPrice, item.ShopID)
	return err
}

const productColumns = `
	id, shop_id, branch, name, category_id, brand_id, scale, availability, total,
	net_price, sell_price, cost_price, supplier, description, is_active, last_restocked,
	createdat, updatedat`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var branch sql.NullInt64
	var supplier, description sql.NullString
	var restocked sql.NullTime
	if err := row.Scan(
		&p.ID, &p.ShopID, &branch, &p.Name, &p.CategoryID, &p.BrandID, &p.Scale, &p.Availability, &p.Total,
		&p.NetPrice, &p.SellPrice, &p.CostPrice, &supplier, &description, &p.IsActive, &restocked,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if branch.Valid {
		b := int(branch.Int64)
		p.Branch = &b
	}
	p.Supplier = supplier.String
	p.Description = description.String
	if restocked.Valid {
		at := restocked.Time.UTC()
		p.LastRestockedAt = &at
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.ShopID == "" || product.Name == "" || product.Availability < 0 {
		return nil, store.ErrInvalidTransaction
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO product (
			id, shop_id, branch, name, category_id, brand_id, scale, availability, total,
			net_price, sell_price, cost_price, supplier, description, is_active, createdat, updatedat
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now(),now())
		RETURNING `+productColumns,
		product.ID, product.ShopID, nullInt(product.Branch), product.Name, product.CategoryID, product.BrandID,
		product.Scale, product.Availability, product.Total, product.NetPrice, product.SellPrice, product.CostPrice,
		nullIfEmpty(product.Supplier), nullIfEmpty(product.Description), product.IsActive,
	)
	created, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM product WHERE id = $1`, id)
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Store) ListProducts(ctx context.Context, shopID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM product
		WHERE ($1 = '' OR shop_id = $1)
		ORDER BY name, id
	`, shopID)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE product
		SET name = $2, category_id = $3, brand_id = $4, scale = $5, net_price = $6, sell_price = $7,
			cost_price = $8, supplier = $9, description = $10, is_active = $11, branch = $12, updatedat = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.CategoryID, product.BrandID, product.Scale, product.NetPrice,
		product.SellPrice, product.CostPrice, nullIfEmpty(product.Supplier), nullIfEmpty(product.Description),
		product.IsActive, nullInt(product.Branch),
	)
	updated, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM product WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// Restock is a single unconditional statement and is not idempotent.
func (s *Store) Restock(ctx context.Context, id string, added int, newTotal int, at time.Time) (*domain.Product, error) {
	if added < 1 || newTotal < 0 {
		return nil, store.ErrInvalidTransaction
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE product
		SET availability = availability + $2, total = $3, last_restocked = $4, updatedat = $4
		WHERE id = $1
		RETURNING `+productColumns,
		id, added, newTotal, at.UTC(),
	)
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Store) ListStockRanking(ctx context.Context, shopID string, highest bool, limit int) ([]domain.Product, error) {
	direction := "ASC"
	if highest {
		direction = "DESC"
	}
	if limit < 1 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM product
		WHERE shop_id = $1
		ORDER BY (total - availability) %s, name
		LIMIT $2
	`, productColumns, direction), shopID, limit)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func collectProducts(rows *sql.Rows) ([]domain.Product, error) {
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

const saleColumns = `
	sale_id, admin_number, admin_name, total_price, total_net_price, profit, payment_method,
	sale_time, sale_day, sales_month, sales_year, branch, shop_id, created_at`

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var branch sql.NullInt64
	var saleTime sql.NullString
	if err := row.Scan(
		&sale.ID, &sale.AdminNumber, &sale.AdminName, &sale.TotalPrice, &sale.TotalNetPrice, &sale.Profit,
		&sale.PaymentMethod, &saleTime, &sale.Day, &sale.Month, &sale.Year, &branch, &sale.ShopID, &sale.CreatedAt,
	); err != nil {
		return nil, err
	}
	sale.SaleTime = saleTime.String
	if branch.Valid {
		b := int(branch.Int64)
		sale.Branch = &b
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE sale_id = $1`, saleID)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, salesid, productid, product_name, amount, net_price, sell_price, shop_id
		FROM soldproduct
		WHERE salesid = $1
		ORDER BY id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sale.Items = make([]domain.SoldItem, 0, 8)
	for rows.Next() {
		var item domain.SoldItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName, &item.Quantity, &item.NetPrice, &item.SellPrice, &item.ShopID); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, shopID string) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE shop_id = $1
		ORDER BY created_at DESC, id DESC
	`, shopID)
	if err != nil {
		return nil, err
	}
	return collectSales(rows)
}

func (s *Store) ListSalesByDay(ctx context.Context, shopID string, day domain.CalendarDay) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE shop_id = $1 AND sale_day = $2 AND sales_month = $3 AND sales_year = $4
		ORDER BY created_at DESC, id DESC
	`, shopID, day.Day, day.Month, day.Year)
	if err != nil {
		return nil, err
	}
	return collectSales(rows)
}

func (s *Store) SumSales(ctx context.Context, shopID string, day *domain.CalendarDay) (domain.SalesTotals, error) {
	query := `
		SELECT COALESCE(SUM(total_price), 0), COALESCE(SUM(total_net_price), 0), COALESCE(SUM(profit), 0), COUNT(*)
		FROM sales
		WHERE shop_id = $1`
	args := []any{shopID}
	if day != nil {
		query += ` AND sale_day = $2 AND sales_month = $3 AND sales_year = $4`
		args = append(args, day.Day, day.Month, day.Year)
	}

	var totals domain.SalesTotals
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&totals.Sale, &totals.NetSale, &totals.Profit, &totals.Count); err != nil {
		return domain.SalesTotals{}, err
	}
	return totals, nil
}

func collectSales(rows *sql.Rows) ([]domain.Sale, error) {
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	return val
}

func nullString(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullInt(val *int) any {
	if val == nil {
		return nil
	}
	return *val
}

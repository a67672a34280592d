package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mrkadirov2005/shopPos/internal/domain"
	"github.com/mrkadirov2005/shopPos/internal/store"
)

const debtColumns = `id, day, month, year, name, amount, product_names, branch_id, shop_id, admin_id, isreturned`

// scanDebt needs a pgtype.Map to decode the text[] column; a Map is not safe
// for concurrent use, so callers pass one per query.
func scanDebt(row rowScanner, m *pgtype.Map) (*domain.Debt, error) {
	var debt domain.Debt
	var names []string
	if err := row.Scan(
		&debt.ID, &debt.Day, &debt.Month, &debt.Year, &debt.Name, &debt.Amount,
		m.SQLScanner(&names), &debt.BranchID, &debt.ShopID, &debt.AdminID, &debt.IsReturned,
	); err != nil {
		return nil, err
	}
	debt.ProductNames = names
	return &debt, nil
}

func (s *Store) CreateDebt(ctx context.Context, debt domain.Debt) (*domain.Debt, error) {
	if debt.ID == "" || debt.ShopID == "" || debt.Name == "" {
		return nil, store.ErrInvalidTransaction
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO debt_table (id, day, month, year, name, amount, product_names, branch_id, shop_id, admin_id, isreturned)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING `+debtColumns,
		debt.ID, debt.Day, debt.Month, debt.Year, debt.Name, debt.Amount, debt.ProductNames,
		debt.BranchID, debt.ShopID, debt.AdminID, debt.IsReturned,
	)
	created, err := scanDebt(row, pgtype.NewMap())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) GetDebt(ctx context.Context, id string) (*domain.Debt, error) {
	debt, err := scanDebt(s.db.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM debt_table WHERE id = $1`, id), pgtype.NewMap())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return debt, nil
}

func (s *Store) ListDebts(ctx context.Context, filter domain.DebtFilter) ([]domain.Debt, error) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if filter.ShopID != "" {
		args = append(args, filter.ShopID)
		clauses = append(clauses, fmt.Sprintf("shop_id = $%d", len(args)))
	}
	if filter.BranchID != nil {
		args = append(args, *filter.BranchID)
		clauses = append(clauses, fmt.Sprintf("branch_id = $%d", len(args)))
	}
	if customer := strings.TrimSpace(filter.Customer); customer != "" {
		args = append(args, "%"+customer+"%")
		clauses = append(clauses, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.UnreturnedOnly {
		clauses = append(clauses, "isreturned = false")
	}

	query := `SELECT ` + debtColumns + ` FROM debt_table`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY year DESC, month DESC, day DESC, name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := pgtype.NewMap()
	debts := make([]domain.Debt, 0, 32)
	for rows.Next() {
		debt, err := scanDebt(rows, m)
		if err != nil {
			return nil, err
		}
		debts = append(debts, *debt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return debts, nil
}

func (s *Store) UpdateDebt(ctx context.Context, debt domain.Debt) (*domain.Debt, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE debt_table
		SET name = $2, amount = $3, product_names = $4, branch_id = $5, isreturned = $6
		WHERE id = $1
		RETURNING `+debtColumns,
		debt.ID, debt.Name, debt.Amount, debt.ProductNames, debt.BranchID, debt.IsReturned,
	)
	updated, err := scanDebt(row, pgtype.NewMap())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteDebt(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM debt_table WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) DebtStatistics(ctx context.Context, shopID string) (domain.DebtStatistics, error) {
	var stats domain.DebtStatistics
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE isreturned),
			COUNT(*) FILTER (WHERE NOT isreturned),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(amount) FILTER (WHERE isreturned), 0),
			COALESCE(SUM(amount) FILTER (WHERE NOT isreturned), 0)
		FROM debt_table
		WHERE shop_id = $1
	`, shopID).Scan(
		&stats.TotalDebts, &stats.ReturnedDebts, &stats.UnreturnedDebts,
		&stats.TotalAmount, &stats.ReturnedAmount, &stats.UnreturnedAmount,
	)
	if err != nil {
		return domain.DebtStatistics{}, err
	}
	return stats, nil
}

func (s *Store) CreateAuditEvent(ctx context.Context, event domain.AuditEvent) error {
	if event.ID == "" || event.ShopID == "" {
		return store.ErrInvalidTransaction
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (uuid, shop_id, day, month, year, target_id, log, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, event.ID, event.ShopID, event.Day, event.Month, event.Year, event.TargetID, event.Log, event.CreatedAt)
	return err
}

func (s *Store) ListAuditEvents(ctx context.Context, shopID string, targetID string, limit int) ([]domain.AuditEvent, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid, shop_id, day, month, year, target_id, log, created_at
		FROM reports
		WHERE shop_id = $1 AND ($2 = '' OR target_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, shopID, targetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.AuditEvent, 0, limit)
	for rows.Next() {
		var event domain.AuditEvent
		if err := rows.Scan(&event.ID, &event.ShopID, &event.Day, &event.Month, &event.Year, &event.TargetID, &event.Log, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid, name, password, role, shop_id, is_active, created_at
		FROM admins
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Username, &user.Password, &user.Role, &user.ShopID, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE admins
		SET password = $2, updated_at = now()
		WHERE name = $1
	`, username, password)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

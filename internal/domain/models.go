package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin     = "admin"
	RoleSuperuser = "superuser"
)

type Product struct {
	ID              string          `json:"id"`
	ShopID          string          `json:"shop_id"`
	Branch          *int            `json:"branch,omitempty"`
	Name            string          `json:"name"`
	CategoryID      string          `json:"category_id"`
	BrandID         string          `json:"brand_id"`
	Scale           string          `json:"scale"`
	Availability    int             `json:"availability"`
	Total           int             `json:"total"`
	NetPrice        decimal.Decimal `json:"net_price"`
	SellPrice       decimal.Decimal `json:"sell_price"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	Supplier        string          `json:"supplier"`
	Description     string          `json:"description"`
	IsActive        bool            `json:"is_active"`
	LastRestockedAt *time.Time      `json:"last_restocked,omitempty"`
	CreatedAt       time.Time       `json:"createdat"`
	UpdatedAt       time.Time       `json:"updatedat"`
}

type ProductCreateRequest struct {
	ShopID       string           `json:"shop_id"`
	Branch       *int             `json:"branch,omitempty"`
	Name         string           `json:"name" validate:"required"`
	CategoryID   string           `json:"category_id" validate:"required"`
	BrandID      string           `json:"brand_id" validate:"required"`
	Scale        string           `json:"scale" validate:"required"`
	Availability *int             `json:"availability" validate:"required,gte=0"`
	Total        *int             `json:"total" validate:"required,gte=0"`
	NetPrice     *decimal.Decimal `json:"net_price" validate:"required"`
	SellPrice    *decimal.Decimal `json:"sell_price" validate:"required"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty"`
	Supplier     string           `json:"supplier"`
	Description  string           `json:"description"`
}

// ProductUpdateRequest never carries availability or total; stock moves
// only through restock and sale reservations.
type ProductUpdateRequest struct {
	Name        *string          `json:"name,omitempty"`
	CategoryID  *string          `json:"category_id,omitempty"`
	BrandID     *string          `json:"brand_id,omitempty"`
	Scale       *string          `json:"scale,omitempty"`
	NetPrice    *decimal.Decimal `json:"net_price,omitempty"`
	SellPrice   *decimal.Decimal `json:"sell_price,omitempty"`
	CostPrice   *decimal.Decimal `json:"cost_price,omitempty"`
	Supplier    *string          `json:"supplier,omitempty"`
	Description *string          `json:"description,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

type RestockRequest struct {
	AddedQuantity int  `json:"added_quantity"`
	Total         *int `json:"total"`
}

type Sale struct {
	ID            string          `json:"sale_id"`
	ShopID        string          `json:"shop_id"`
	Branch        *int            `json:"branch,omitempty"`
	AdminNumber   string          `json:"admin_number"`
	AdminName     string          `json:"admin_name"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	TotalNetPrice decimal.Decimal `json:"total_net_price"`
	Profit        decimal.Decimal `json:"profit"`
	PaymentMethod string          `json:"payment_method"`
	SaleTime      string          `json:"sale_time,omitempty"`
	Day           int             `json:"sale_day"`
	Month         int             `json:"sales_month"`
	Year          int             `json:"sales_year"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []SoldItem      `json:"-"`
}

type SoldItem struct {
	ID          int64           `json:"id"`
	SaleID      string          `json:"salesid"`
	ProductID   string          `json:"productid"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"amount"`
	NetPrice    decimal.Decimal `json:"net_price"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	ShopID      string          `json:"shop_id"`
}

// SaleSubmitRequest is the wire shape accepted by the sale endpoint.
type SaleSubmitRequest struct {
	Sale     *SaleHeaderInput `json:"sale" validate:"required"`
	Products []SaleItemInput  `json:"products" validate:"required,min=1,dive"`
	ShopID   string           `json:"shop_id,omitempty"`
}

type SaleHeaderInput struct {
	AdminNumber   string           `json:"admin_number" validate:"required"`
	AdminName     string           `json:"admin_name" validate:"required"`
	TotalPrice    *decimal.Decimal `json:"total_price" validate:"required"`
	TotalNetPrice *decimal.Decimal `json:"total_net_price" validate:"required"`
	Profit        *decimal.Decimal `json:"profit" validate:"required"`
	PaymentMethod string           `json:"payment_method" validate:"required"`
	SaleTime      string           `json:"sale_time,omitempty"`
	SaleDay       *int             `json:"sale_day,omitempty"`
	SalesMonth    *int             `json:"sales_month,omitempty"`
	SalesYear     *int             `json:"sales_year,omitempty"`
	Branch        *int             `json:"branch,omitempty"`
	ShopID        string           `json:"shop_id,omitempty"`
}

type SaleItemInput struct {
	ProductID    string          `json:"productid" validate:"required"`
	SellQuantity *int            `json:"sell_quantity,omitempty"`
	Amount       *int            `json:"amount,omitempty"`
	ProductName  string          `json:"product_name"`
	NetPrice     decimal.Decimal `json:"net_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	ShopID       string          `json:"shop_id,omitempty"`
}

// Quantity prefers sell_quantity over amount.
func (i SaleItemInput) Quantity() int {
	if i.SellQuantity != nil {
		return *i.SellQuantity
	}
	if i.Amount != nil {
		return *i.Amount
	}
	return 0
}

type SaleSubmitResponse struct {
	Message string `json:"message"`
	SaleID  string `json:"sale_id"`
}

type SaleDetail struct {
	Sale     Sale       `json:"sale"`
	Products []SoldItem `json:"products"`
}

type Debt struct {
	ID           string          `json:"id"`
	Day          int             `json:"day"`
	Month        int             `json:"month"`
	Year         int             `json:"year"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	ProductNames []string        `json:"product_names"`
	BranchID     int             `json:"branch_id"`
	ShopID       string          `json:"shop_id"`
	AdminID      string          `json:"admin_id"`
	IsReturned   bool            `json:"isreturned"`
}

type DebtCreateRequest struct {
	Name         string           `json:"name" validate:"required"`
	Amount       *decimal.Decimal `json:"amount" validate:"required"`
	ProductNames ProductNameList  `json:"product_names" validate:"required,min=1"`
	BranchID     *int             `json:"branch_id" validate:"required"`
	ShopID       string           `json:"shop_id"`
	AdminID      string           `json:"admin_id"`
}

type DebtUpdateRequest struct {
	Name         *string          `json:"name,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	ProductNames ProductNameList  `json:"product_names,omitempty"`
	BranchID     *int             `json:"branch_id,omitempty"`
	IsReturned   *bool            `json:"isreturned,omitempty"`
}

type DebtFilter struct {
	ShopID         string
	BranchID       *int
	Customer       string
	UnreturnedOnly bool
}

type DebtStatistics struct {
	TotalDebts       int             `json:"total_debts"`
	ReturnedDebts    int             `json:"returned_debts"`
	UnreturnedDebts  int             `json:"unreturned_debts"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ReturnedAmount   decimal.Decimal `json:"returned_amount"`
	UnreturnedAmount decimal.Decimal `json:"unreturned_amount"`
}

type AuditEvent struct {
	ID        string    `json:"uuid"`
	ShopID    string    `json:"shop_id"`
	Day       int       `json:"day"`
	Month     int       `json:"month"`
	Year      int       `json:"year"`
	TargetID  string    `json:"target_id"`
	Log       string    `json:"log"`
	CreatedAt time.Time `json:"created_at"`
}

// CalendarDay is the day/month/year partition used by sales, debts and
// audit events.
type CalendarDay struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

func CalendarDayOf(t time.Time) CalendarDay {
	return CalendarDay{Day: t.Day(), Month: int(t.Month()), Year: t.Year()}
}

func (c CalendarDay) Valid() bool {
	if c.Month < 1 || c.Month > 12 || c.Day < 1 || c.Year < 1 {
		return false
	}
	t := time.Date(c.Year, time.Month(c.Month), c.Day, 0, 0, 0, 0, time.UTC)
	return t.Day() == c.Day
}

func (c CalendarDay) AddDays(n int) CalendarDay {
	t := time.Date(c.Year, time.Month(c.Month), c.Day, 0, 0, 0, 0, time.UTC)
	return CalendarDayOf(t.AddDate(0, 0, n))
}

func (c CalendarDay) String() string {
	return time.Date(c.Year, time.Month(c.Month), c.Day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

type SalesTotals struct {
	Sale    decimal.Decimal `json:"sale"`
	NetSale decimal.Decimal `json:"net_sale"`
	Profit  decimal.Decimal `json:"profit"`
	Count   int             `json:"count"`
}

type FinanceSummary struct {
	ShopID string      `json:"shop_id"`
	All    SalesTotals `json:"all_time"`
	Today  SalesTotals `json:"today"`
	Date   string      `json:"date"`
}

type DayStatistics struct {
	ShopID string      `json:"shop_id"`
	Date   CalendarDay `json:"date"`
	SalesTotals
	Sales []Sale `json:"sales"`
}

type WeekPoint struct {
	Date CalendarDay `json:"date"`
	SalesTotals
}

type WeekStatistics struct {
	ShopID string      `json:"shop_id"`
	Days   []WeekPoint `json:"days"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ShopID      string `json:"shop_id"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	ID     string
	Name   string
	Role   string
	ShopID string
}

// UserAccount is an internal persistence model for admin credentials.
type UserAccount struct {
	ID        string
	Username  string
	Password  string
	Role      string
	ShopID    string
	Active    bool
	CreatedAt time.Time
}

package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mrkadirov2005/shopPos/internal/domain"
	"github.com/mrkadirov2005/shopPos/internal/report"
)

const weekLength = 7

const (
	ExportFormatXLSX = "xlsx"
	ExportFormatPDF  = "pdf"
)

// Export is a rendered statistics document ready to be served as a download.
type Export struct {
	Body        []byte
	ContentType string
	FileName    string
}

func financeKey(shopID string, day domain.CalendarDay) string {
	return fmt.Sprintf("stats:%s:finance:%s", shopID, day)
}

func weekKey(shopID string, day domain.CalendarDay) string {
	return fmt.Sprintf("stats:%s:week:%s", shopID, day)
}

func dayKey(shopID string, day domain.CalendarDay) string {
	return fmt.Sprintf("stats:%s:day:%s", shopID, day)
}

// cached serves key from the stats cache or computes it with load and stores
// the result. Cache failures only cost a recomputation.
func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	var out T
	hit, err := s.stats.Get(ctx, key, &out)
	if err != nil {
		log.Printf("[cache] WARN: get %s: %v", key, err)
	}
	if err == nil && hit {
		return out, nil
	}

	out, err = load()
	if err != nil {
		return out, err
	}
	if err := s.stats.Set(ctx, key, out, s.statsTTL); err != nil {
		log.Printf("[cache] WARN: set %s: %v", key, err)
	}
	return out, nil
}

// invalidateStats drops every cached rollup a new sale on day can change.
func (s *Service) invalidateStats(ctx context.Context, shopID string, day domain.CalendarDay) {
	today := domain.CalendarDayOf(s.now())
	keys := []string{financeKey(shopID, today), weekKey(shopID, today), dayKey(shopID, day)}
	if err := s.stats.Delete(context.WithoutCancel(ctx), keys...); err != nil {
		log.Printf("[cache] WARN: invalidate shop=%s: %v", shopID, err)
	}
}

func (s *Service) FinanceSummary(ctx context.Context, shopID string) (domain.FinanceSummary, error) {
	shopID, err := s.scopedShop(ctx, shopID)
	if err != nil {
		return domain.FinanceSummary{}, err
	}
	today := domain.CalendarDayOf(s.now())

	return cached(ctx, s, financeKey(shopID, today), func() (domain.FinanceSummary, error) {
		all, err := s.repo.SumSales(ctx, shopID, nil)
		if err != nil {
			return domain.FinanceSummary{}, classify("finance summary", err)
		}
		daily, err := s.repo.SumSales(ctx, shopID, &today)
		if err != nil {
			return domain.FinanceSummary{}, classify("finance summary", err)
		}
		return domain.FinanceSummary{ShopID: shopID, All: all, Today: daily, Date: today.String()}, nil
	})
}

// DayStatistics returns the totals and sales of one calendar day. Zero
// components of day are taken from today.
func (s *Service) DayStatistics(ctx context.Context, shopID string, day domain.CalendarDay) (domain.DayStatistics, error) {
	shopID, err := s.scopedShop(ctx, shopID)
	if err != nil {
		return domain.DayStatistics{}, err
	}
	day, err = s.resolveDay(day)
	if err != nil {
		return domain.DayStatistics{}, err
	}

	return cached(ctx, s, dayKey(shopID, day), func() (domain.DayStatistics, error) {
		sales, err := s.repo.ListSalesByDay(ctx, shopID, day)
		if err != nil {
			return domain.DayStatistics{}, classify("day statistics", err)
		}
		stats := domain.DayStatistics{ShopID: shopID, Date: day, Sales: sales}
		for _, sale := range sales {
			stats.Sale = stats.Sale.Add(sale.TotalPrice)
			stats.NetSale = stats.NetSale.Add(sale.TotalNetPrice)
			stats.Profit = stats.Profit.Add(sale.Profit)
			stats.Count++
		}
		return stats, nil
	})
}

// WeekStatistics returns one point per day for today and the six days
// before it, oldest first.
func (s *Service) WeekStatistics(ctx context.Context, shopID string) (domain.WeekStatistics, error) {
	shopID, err := s.scopedShop(ctx, shopID)
	if err != nil {
		return domain.WeekStatistics{}, err
	}
	today := domain.CalendarDayOf(s.now())

	return cached(ctx, s, weekKey(shopID, today), func() (domain.WeekStatistics, error) {
		week := domain.WeekStatistics{ShopID: shopID, Days: make([]domain.WeekPoint, 0, weekLength)}
		for offset := weekLength - 1; offset >= 0; offset-- {
			day := today.AddDays(-offset)
			totals, err := s.repo.SumSales(ctx, shopID, &day)
			if err != nil {
				return domain.WeekStatistics{}, classify("week statistics", err)
			}
			week.Days = append(week.Days, domain.WeekPoint{Date: day, SalesTotals: totals})
		}
		return week, nil
	})
}

func (s *Service) ExportDayStatistics(ctx context.Context, shopID string, day domain.CalendarDay, format string) (Export, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatXLSX
	}
	if format != ExportFormatXLSX && format != ExportFormatPDF {
		return Export{}, invalidField("format", "format must be xlsx or pdf")
	}

	stats, err := s.DayStatistics(ctx, shopID, day)
	if err != nil {
		return Export{}, err
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case ExportFormatPDF:
		body, err = report.DayStatisticsPDF(stats)
		contentType = report.ContentTypePDF
	default:
		body, err = report.DayStatisticsXLSX(stats)
		contentType = report.ContentTypeXLSX
	}
	if err != nil {
		return Export{}, fmt.Errorf("render %s export: %w", format, err)
	}

	return Export{Body: body, ContentType: contentType, FileName: report.FileName(stats, format)}, nil
}

func (s *Service) resolveDay(day domain.CalendarDay) (domain.CalendarDay, error) {
	today := domain.CalendarDayOf(s.now())
	if day.Day == 0 {
		day.Day = today.Day
	}
	if day.Month == 0 {
		day.Month = today.Month
	}
	if day.Year == 0 {
		day.Year = today.Year
	}
	if !day.Valid() {
		return domain.CalendarDay{}, invalidField("day", "invalid date %d-%d-%d", day.Year, day.Month, day.Day)
	}
	return day, nil
}

package reports

import (
	"context"
	"sort"
	"time"

	"pos-service/internal/domain"
	"pos-service/internal/excel"
	"pos-service/internal/repository"
	apperrors "pos-service/pkg/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DateLayout is the format of report days
const DateLayout = "2006-01-02"

// DefaultTopProducts is how many best sellers a daily report lists
const DefaultTopProducts = 10

// Enqueuer hands records to the offline sync queue
type Enqueuer interface {
	Enqueue(ctx context.Context, kind domain.ActionKind, payload interface{}) (domain.PendingAction, error)
}

// Service builds sales reports from the record store
type Service struct {
	sales    repository.SaleRepository
	queue    Enqueuer
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a report service; days are calendar days in loc
func NewService(sales repository.SaleRepository, queue Enqueuer, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sales:    sales,
		queue:    queue,
		location: loc,
		logger:   logger,
		now:      time.Now,
	}
}

// ParseDay reads a YYYY-MM-DD day; empty means today
func (s *Service) ParseDay(raw string) (time.Time, error) {
	if raw == "" {
		now := s.now().In(s.location)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location), nil
	}
	day, err := time.ParseInLocation(DateLayout, raw, s.location)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("date must be formatted as YYYY-MM-DD", "date")
	}
	return day, nil
}

// DailySummary aggregates the sales of the calendar day containing day
func (s *Service) DailySummary(ctx context.Context, day time.Time) (*domain.DailyReport, error) {
	report, _, err := s.daily(ctx, day)
	return report, err
}

// BestSellers ranks products by units sold in [from, to), at most limit entries
func (s *Service) BestSellers(ctx context.Context, from, to time.Time, limit int) ([]domain.BestSeller, error) {
	if !to.After(from) {
		return nil, apperrors.NewValidationError("end of range must be after its start", "to")
	}
	sales, err := s.sales.ListSales(ctx, from, to)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list sales", err)
	}
	return rankProducts(sales, limit), nil
}

// ExportWorkbook renders the daily report and its sales as xlsx
func (s *Service) ExportWorkbook(ctx context.Context, day time.Time) ([]byte, error) {
	report, sales, err := s.daily(ctx, day)
	if err != nil {
		return nil, err
	}
	data, err := excel.WriteDailyReport(report, sales)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build report workbook", err)
	}
	return data, nil
}

// SubmitDailyReport queues the daily report for upload to the backend
func (s *Service) SubmitDailyReport(ctx context.Context, day time.Time) (*domain.DailyReport, error) {
	report, err := s.DailySummary(ctx, day)
	if err != nil {
		return nil, err
	}
	if _, err := s.queue.Enqueue(ctx, domain.ActionUploadReport, report); err != nil {
		s.logger.Error("Failed to queue daily report", zap.String("date", report.Date), zap.Error(err))
		return report, err
	}
	s.logger.Info("Daily report queued", zap.String("date", report.Date), zap.Int("sales", report.SaleCount))
	return report, nil
}

func (s *Service) daily(ctx context.Context, day time.Time) (*domain.DailyReport, []*domain.Sale, error) {
	local := day.In(s.location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	end := start.AddDate(0, 0, 1)

	sales, err := s.sales.ListSales(ctx, start, end)
	if err != nil {
		return nil, nil, apperrors.NewDatabaseError("list sales", err)
	}

	report := &domain.DailyReport{
		Date:            start.Format(DateLayout),
		Revenue:         decimal.Zero,
		Tax:             decimal.Zero,
		Discounts:       decimal.Zero,
		AverageTicket:   decimal.Zero,
		ByPaymentMethod: make(map[domain.PaymentMethod]decimal.Decimal),
		TopProducts:     rankProducts(sales, DefaultTopProducts),
		GeneratedAt:     s.now().UTC(),
	}
	for _, sale := range sales {
		report.SaleCount++
		report.ItemsSold += sale.ItemCount()
		report.Revenue = report.Revenue.Add(sale.Total)
		report.Tax = report.Tax.Add(sale.Tax)
		report.Discounts = report.Discounts.Add(sale.DiscountAmount)
		report.ByPaymentMethod[sale.PaymentMethod] = report.ByPaymentMethod[sale.PaymentMethod].Add(sale.Total)
	}
	if report.SaleCount > 0 {
		report.AverageTicket = domain.Round2(report.Revenue.Div(decimal.NewFromInt(int64(report.SaleCount))))
	}
	return report, sales, nil
}

func rankProducts(sales []*domain.Sale, limit int) []domain.BestSeller {
	byProduct := make(map[string]*domain.BestSeller)
	var order []string
	for _, sale := range sales {
		for _, item := range sale.Items {
			seller, ok := byProduct[item.ProductID]
			if !ok {
				seller = &domain.BestSeller{ProductID: item.ProductID, Name: item.Name, Revenue: decimal.Zero}
				byProduct[item.ProductID] = seller
				order = append(order, item.ProductID)
			}
			seller.Quantity += item.Quantity
			seller.Revenue = seller.Revenue.Add(item.Total)
		}
	}

	ranked := make([]domain.BestSeller, 0, len(order))
	for _, id := range order {
		seller := *byProduct[id]
		seller.Revenue = domain.Round2(seller.Revenue)
		ranked = append(ranked, seller)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Quantity > ranked[j].Quantity })
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

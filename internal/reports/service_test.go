package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"pos-service/internal/domain"
	"pos-service/internal/repository"
	apperrors "pos-service/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type recordingQueue struct {
	kinds    []domain.ActionKind
	payloads []interface{}
}

func (q *recordingQueue) Enqueue(ctx context.Context, kind domain.ActionKind, payload interface{}) (domain.PendingAction, error) {
	q.kinds = append(q.kinds, kind)
	q.payloads = append(q.payloads, payload)
	return domain.PendingAction{Kind: kind}, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(id, name string, price string, quantity int) domain.CartLine {
	l := domain.CartLine{ProductID: id, Name: name, Price: dec(price), Quantity: quantity}
	l.Recompute()
	return l
}

func saveSale(t *testing.T, store repository.SaleRepository, at time.Time, method domain.PaymentMethod, total, tax, discount string, items ...domain.CartLine) {
	t.Helper()
	sale := &domain.Sale{
		ID:             at.Format(time.RFC3339Nano) + string(method),
		ReceiptNumber:  domain.GenerateReceiptNumber(at),
		Items:          items,
		Tax:            dec(tax),
		DiscountAmount: dec(discount),
		Total:          dec(total),
		AmountPaid:     dec(total),
		PaymentMethod:  method,
		SyncStatus:     domain.SyncPending,
		CreatedAt:      at,
	}
	require.NoError(t, store.SaveSale(context.Background(), sale))
}

func seeded(t *testing.T) (*Service, *recordingQueue) {
	t.Helper()
	store := repository.NewInMemoryStore()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	saveSale(t, store, day.Add(9*time.Hour), domain.PaymentCash, "58.65", "7.65", "0",
		line("milk", "Milk", "25.50", 2))
	saveSale(t, store, day.Add(13*time.Hour), domain.PaymentCard, "20.70", "2.70", "0",
		line("bread", "Bread", "3", 5), line("milk", "Milk", "3", 1))
	saveSale(t, store, day.Add(18*time.Hour), domain.PaymentCash, "10.35", "1.35", "1",
		line("eggs", "Eggs", "10", 1))
	// next day
	saveSale(t, store, day.Add(25*time.Hour), domain.PaymentCash, "100", "0", "0",
		line("bread", "Bread", "100", 1))

	queue := &recordingQueue{}
	svc := NewService(store, queue, time.UTC, zap.NewNop())
	svc.now = func() time.Time { return day.Add(20 * time.Hour) }
	return svc, queue
}

func TestDailySummary(t *testing.T) {
	svc, _ := seeded(t)

	report, err := svc.DailySummary(context.Background(), time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", report.Date)
	assert.Equal(t, 3, report.SaleCount)
	assert.Equal(t, 9, report.ItemsSold)
	assert.True(t, dec("89.70").Equal(report.Revenue), report.Revenue.String())
	assert.True(t, dec("11.70").Equal(report.Tax), report.Tax.String())
	assert.True(t, dec("1").Equal(report.Discounts))
	assert.True(t, dec("29.90").Equal(report.AverageTicket), report.AverageTicket.String())
	assert.True(t, dec("69").Equal(report.ByPaymentMethod[domain.PaymentCash]))
	assert.True(t, dec("20.70").Equal(report.ByPaymentMethod[domain.PaymentCard]))

	require.Len(t, report.TopProducts, 3)
	assert.Equal(t, "bread", report.TopProducts[0].ProductID)
	assert.Equal(t, 5, report.TopProducts[0].Quantity)
	assert.Equal(t, "milk", report.TopProducts[1].ProductID)
	assert.Equal(t, 3, report.TopProducts[1].Quantity)
	assert.True(t, dec("54").Equal(report.TopProducts[1].Revenue))
}

func TestDailySummary_EmptyDay(t *testing.T) {
	svc, _ := seeded(t)

	report, err := svc.DailySummary(context.Background(), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, 0, report.SaleCount)
	assert.True(t, report.AverageTicket.IsZero())
	assert.Empty(t, report.TopProducts)
}

func TestBestSellers(t *testing.T) {
	svc, _ := seeded(t)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	top, err := svc.BestSellers(context.Background(), from, from.AddDate(0, 0, 2), 1)

	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "bread", top[0].ProductID)
	assert.Equal(t, 6, top[0].Quantity)

	_, err = svc.BestSellers(context.Background(), from, from, 5)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestParseDay(t *testing.T) {
	svc, _ := seeded(t)

	today, err := svc.ParseDay("")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), today)

	day, err := svc.ParseDay("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, 29, day.Day())

	_, err = svc.ParseDay("01/03/2024")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestExportWorkbook(t *testing.T) {
	svc, _ := seeded(t)

	data, err := svc.ExportWorkbook(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	file, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer file.Close()
	rows, err := file.GetRows("Sales")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestSubmitDailyReport(t *testing.T) {
	svc, queue := seeded(t)

	report, err := svc.SubmitDailyReport(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, []domain.ActionKind{domain.ActionUploadReport}, queue.kinds)
	data, err := json.Marshal(queue.payloads[0])
	require.NoError(t, err)
	var uploaded domain.DailyReport
	require.NoError(t, json.Unmarshal(data, &uploaded))
	assert.Equal(t, report.Date, uploaded.Date)
	assert.Equal(t, 3, uploaded.SaleCount)
}

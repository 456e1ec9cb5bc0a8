package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkaminsky/PocketLedger/internal/ledger/domain"
	ledgerErrors "github.com/mkaminsky/PocketLedger/internal/ledger/errors"
)

const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"

	dayLabelLayout   = "2006-01-02"
	monthLabelLayout = "2006-01"
)

// PeriodBucket is one labeled slot in a period aggregation result.
type PeriodBucket struct {
	Label   string          `json:"label"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// GetStatsByPeriod buckets the user's transactions into a fixed, ordered,
// zero-filled time series: 7 daily buckets for "week", 30 daily buckets for
// "month", 12 monthly buckets for "year", always ending at the current
// day/month and ordered oldest to newest.
//
// The canonical label list is generated up front, independent of stored data,
// and the fetched transactions are folded into it afterwards. That keeps the
// output gap-free even for users with no transactions at all.
func (s *PersonalLedgerService) GetStatsByPeriod(ctx context.Context, userID, period string) ([]PeriodBucket, error) {
	now := s.now()

	var labels []string
	var from time.Time
	layout := dayLabelLayout

	switch period {
	case PeriodWeek:
		labels, from = dayLabels(now, 7)
	case PeriodMonth:
		labels, from = dayLabels(now, 30)
	case PeriodYear:
		labels, from = monthLabels(now, 12)
		layout = monthLabelLayout
	default:
		return nil, ledgerErrors.ErrInvalidPeriod
	}

	transactions, err := s.repo.FindInDateRange(ctx, userID, from, now)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*PeriodBucket, len(labels))
	for _, label := range labels {
		totals[label] = &PeriodBucket{Label: label, Income: decimal.Zero, Expense: decimal.Zero}
	}

	for _, transaction := range transactions {
		bucket, ok := totals[transaction.CreatedAt.In(now.Location()).Format(layout)]
		if !ok {
			continue
		}
		switch transaction.Type {
		case domain.TypeIncome:
			bucket.Income = bucket.Income.Add(transaction.Amount)
		case domain.TypeExpense:
			bucket.Expense = bucket.Expense.Add(transaction.Amount)
		}
	}

	series := make([]PeriodBucket, len(labels))
	for i, label := range labels {
		series[i] = *totals[label]
	}
	return series, nil
}

// dayLabels returns the canonical day labels for the last n calendar days
// including today, oldest first, along with the window start (midnight of the
// oldest day).
func dayLabels(now time.Time, n int) ([]string, time.Time) {
	year, month, day := now.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(n - 1))

	labels := make([]string, n)
	for i := range labels {
		labels[i] = start.AddDate(0, 0, i).Format(dayLabelLayout)
	}
	return labels, start
}

// monthLabels returns the canonical month labels for the last n calendar
// months including the current one, oldest first. Months are anchored to the
// first of the month so date arithmetic never overflows into a neighbour.
func monthLabels(now time.Time, n int) ([]string, time.Time) {
	year, month, _ := now.Date()
	start := time.Date(year, month, 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(n - 1), 0)

	labels := make([]string, n)
	for i := range labels {
		labels[i] = start.AddDate(0, i, 0).Format(monthLabelLayout)
	}
	return labels, start
}

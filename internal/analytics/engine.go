// Package analytics folds transaction lists into display-ready aggregates.
// Everything here is pure and deterministic: no I/O, no clock, no state.
package analytics

import (
	"sort"
	"time"

	"github.com/finlens/statement-insights/internal/domain"
)

// MonthlyTotals groups transactions by calendar month and sums spending and
// income per group. The result is sorted ascending by date.
func MonthlyTotals(txns []domain.Transaction) []domain.MonthlyData {
	type bucket struct {
		key  time.Time
		data domain.MonthlyData
	}
	buckets := make(map[string]*bucket)

	for _, txn := range txns {
		key := time.Date(txn.Date.Year(), txn.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		label := key.Format("Jan 2006")

		b, ok := buckets[label]
		if !ok {
			b = &bucket{key: key, data: domain.MonthlyData{Month: label}}
			buckets[label] = b
		}

		b.data.TransactionCount++
		if txn.Type == domain.Debit {
			b.data.TotalSpending += txn.Amount
		} else {
			b.data.TotalIncome += txn.Amount
		}
		b.data.NetFlow = b.data.TotalIncome - b.data.TotalSpending
	}

	ordered := make([]bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, *b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].key.Before(ordered[j].key) })

	result := make([]domain.MonthlyData, 0, len(ordered))
	for _, b := range ordered {
		result = append(result, b.data)
	}
	return result
}

// CategoryBreakdown sums debit amounts per category. Percentages are shares
// of the total debit sum and are all zero when there are no debits. The
// result is sorted descending by amount.
func CategoryBreakdown(txns []domain.Transaction) []domain.CategoryData {
	amounts := make(map[string]float64)
	var totalSpending float64

	for _, txn := range txns {
		if txn.Type != domain.Debit {
			continue
		}
		amounts[txn.Category] += txn.Amount
		totalSpending += txn.Amount
	}

	result := make([]domain.CategoryData, 0, len(amounts))
	for category, amount := range amounts {
		pct := 0.0
		if totalSpending > 0 {
			pct = amount / totalSpending * 100
		}
		result = append(result, domain.CategoryData{
			Category:   category,
			Amount:     amount,
			Percentage: pct,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Amount != result[j].Amount {
			return result[i].Amount > result[j].Amount
		}
		return result[i].Category < result[j].Category
	})
	return result
}

// KPIs computes the headline metrics for a transaction list. TopCategory is
// "N/A" when there are no debits to rank.
func KPIs(txns []domain.Transaction) domain.KPIMetrics {
	var totalSpending, totalIncome float64
	for _, txn := range txns {
		if txn.Type == domain.Debit {
			totalSpending += txn.Amount
		} else {
			totalIncome += txn.Amount
		}
	}

	topCategory := "N/A"
	if breakdown := CategoryBreakdown(txns); len(breakdown) > 0 {
		topCategory = breakdown[0].Category
	}

	avg := 0.0
	if len(txns) > 0 {
		avg = (totalSpending + totalIncome) / float64(len(txns))
	}

	return domain.KPIMetrics{
		TotalSpending:      totalSpending,
		TotalIncome:        totalIncome,
		NetCashFlow:        totalIncome - totalSpending,
		TransactionCount:   len(txns),
		AvgTransactionSize: avg,
		TopCategory:        topCategory,
	}
}

// DateRange renders a human label for the period a transaction list covers,
// like "Oct 2025" or "Jan 2025 - Mar 2025".
func DateRange(txns []domain.Transaction) string {
	if len(txns) == 0 {
		return "No data"
	}

	min, max := txns[0].Date, txns[0].Date
	for _, txn := range txns[1:] {
		if txn.Date.Before(min) {
			min = txn.Date
		}
		if txn.Date.After(max) {
			max = txn.Date
		}
	}

	if min.Year() == max.Year() && min.Month() == max.Month() {
		return min.Format("Jan 2006")
	}
	return min.Format("Jan 2006") + " - " + max.Format("Jan 2006")
}

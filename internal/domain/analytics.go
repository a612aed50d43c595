package domain

// MonthlyData aggregates one calendar month of transactions.
type MonthlyData struct {
	Month            string  `json:"month"`
	TotalSpending    float64 `json:"totalSpending"`
	TotalIncome      float64 `json:"totalIncome"`
	NetFlow          float64 `json:"netFlow"`
	TransactionCount int     `json:"transactionCount"`
}

// CategoryData is one slice of the debit-only category breakdown.
type CategoryData struct {
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

// KPIMetrics are the headline numbers for a transaction list.
type KPIMetrics struct {
	TotalSpending      float64 `json:"totalSpending"`
	TotalIncome        float64 `json:"totalIncome"`
	NetCashFlow        float64 `json:"netCashFlow"`
	TransactionCount   int     `json:"transactionCount"`
	AvgTransactionSize float64 `json:"avgTransactionSize"`
	TopCategory        string  `json:"topCategory"`
}

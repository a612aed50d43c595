// Command parse runs the deterministic statement parser against a local PDF
// without touching the network: no model calls, no storage.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/finlens/statement-insights/internal/analytics"
	"github.com/finlens/statement-insights/internal/domain"
	"github.com/finlens/statement-insights/internal/logger"
	"github.com/finlens/statement-insights/internal/parser"
	"github.com/finlens/statement-insights/internal/pdfdoc"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	var (
		input    = flag.String("input", "", "path to the statement PDF (required)")
		password = flag.String("password", "", "password for encrypted PDFs")
		format   = flag.String("format", "json", "output format: json or csv")
		qpdf     = flag.String("qpdf", "qpdf", "path to the qpdf binary")
		summary  = flag.Bool("summary", true, "print account summary and KPIs to stderr")
	)
	flag.Parse()

	if *input == "" {
		flag.Usage()
		log.Fatal().Msg("Error: --input is required")
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read input file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	decryptor := pdfdoc.NewDecryptor(*qpdf, os.TempDir())
	decrypted, err := decryptor.Decrypt(ctx, data, *password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open PDF")
	}

	text, err := pdfdoc.ExtractText(decrypted)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to extract text")
	}

	p, err := parser.AutoDetect(text)
	if err != nil {
		log.Fatal().Err(err).Msg("No parser recognizes this statement")
	}

	txns := p.Parse(text)
	log.Info().
		Str("bank", p.BankName()).
		Int("transactions", len(txns)).
		Msg("Statement parsed")

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(txns); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode transactions")
		}
	case "csv":
		if err := writeCSV(os.Stdout, txns); err != nil {
			log.Fatal().Err(err).Msg("Failed to write CSV")
		}
	default:
		log.Fatal().Str("format", *format).Msg("Unknown output format")
	}

	if *summary {
		printSummary(parser.ParseAccountSummary(text), txns)
	}
}

func writeCSV(f *os.File, txns []domain.Transaction) error {
	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "date", "description", "amount", "type", "category"}); err != nil {
		return err
	}
	for _, t := range txns {
		record := []string{
			t.ID,
			t.Date.Format("2006-01-02"),
			t.Description,
			strconv.FormatFloat(t.Amount, 'f', 2, 64),
			string(t.Type),
			t.Category,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// printSummary renders the statement header plus headline figures.
// Everything goes to stderr so piped JSON/CSV output stays clean.
func printSummary(acct domain.AccountSummary, txns []domain.Transaction) {
	out := os.Stderr

	fmt.Fprintln(out)
	if acct.AccountNumber != "" {
		fmt.Fprintf(out, "Account:          %s\n", acct.AccountNumber)
	}
	if acct.StatementPeriod != "" {
		fmt.Fprintf(out, "Period:           %s\n", acct.StatementPeriod)
	}
	if acct.OpeningBalance != 0 || acct.ClosingBalance != 0 {
		fmt.Fprintf(out, "Opening balance:  %.2f\n", acct.OpeningBalance)
		fmt.Fprintf(out, "Closing balance:  %.2f\n", acct.ClosingBalance)
	}

	kpis := analytics.KPIs(txns)
	fmt.Fprintf(out, "Date range:       %s\n", analytics.DateRange(txns))
	fmt.Fprintf(out, "Transactions:     %d\n", kpis.TransactionCount)
	fmt.Fprintf(out, "Total spending:   %.2f\n", kpis.TotalSpending)
	fmt.Fprintf(out, "Total income:     %.2f\n", kpis.TotalIncome)
	fmt.Fprintf(out, "Net cash flow:    %.2f\n", kpis.NetCashFlow)
	fmt.Fprintf(out, "Top category:     %s\n", kpis.TopCategory)

	fmt.Fprintln(out, "\nSpending by category:")
	for _, c := range analytics.CategoryBreakdown(txns) {
		fmt.Fprintf(out, "  %-20s %10.2f  (%.1f%%)\n", c.Category, c.Amount, c.Percentage)
	}
}

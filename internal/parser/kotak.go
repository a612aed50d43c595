package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/finlens/statement-insights/internal/domain"
)

// KotakParser handles Kotak Mahindra Bank statements.
//
// Line format: DATE TRANSACTION_DETAILS REFERENCE# DEBIT CREDIT BALANCE
//
//	Date format: "DD Mon, YYYY"
//	Example: "01 Oct, 2025 UPI/ROMS PIZZA/payment UPI-1234 -456.00 12,345.67"
//
// Statements wrap long transactions across physical lines, so any line not
// starting with a date continues the previous record.
type KotakParser struct{}

func (p *KotakParser) BankName() string {
	return "Kotak Mahindra Bank"
}

var (
	// "DD Mon, YYYY" at the start of a line opens a new record.
	kotakDatePattern = regexp.MustCompile(`^(\d{2}\s+\w{3},\s+\d{4})`)
	// Reference token distinguishing UPI from mobile-banking transfers.
	kotakRefPattern = regexp.MustCompile(`(UPI-\d+|MB-\d+)`)
	// Decimal amount tokens, optionally signed.
	kotakAmountPattern = regexp.MustCompile(`[-+]?[\d,]+\.\d{2}`)
	// Column labels that leak into joined lines.
	kotakLabelPattern = regexp.MustCompile(`CHEQUE/REFERENCE#|DEBIT|CREDIT|BALANCE`)

	whitespace = regexp.MustCompile(`\s+`)
)

// Parse splits text into logical records (joining continuation lines) and
// converts each into a transaction. Ambiguous or amount-less records are
// silently dropped: a malformed transaction is worse than a missing one.
func (p *KotakParser) Parse(text string) []domain.Transaction {
	var transactions []domain.Transaction
	var current string
	index := 0

	flush := func() {
		if current == "" {
			return
		}
		if txn, ok := p.parseRecord(current, index); ok {
			transactions = append(transactions, txn)
			index++
		}
		current = ""
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if kotakDatePattern.MatchString(line) {
			flush()
			current = line
		} else if current != "" {
			current += " " + line
		}
	}
	flush()

	return transactions
}

// parseRecord converts one joined record into a transaction. ok is false for
// non-transaction noise (balance markers, header fragments, zero amounts).
func (p *KotakParser) parseRecord(record string, index int) (domain.Transaction, bool) {
	dateMatch := kotakDatePattern.FindString(record)
	if dateMatch == "" {
		return domain.Transaction{}, false
	}

	if strings.Contains(record, "OPENING BALANCE") || strings.Contains(record, "CLOSING BALANCE") {
		return domain.Transaction{}, false
	}

	rest := strings.TrimSpace(strings.TrimPrefix(record, dateMatch))
	if rest == "" {
		return domain.Transaction{}, false
	}

	reference := kotakRefPattern.FindString(rest)
	amounts := kotakAmountPattern.FindAllString(rest, -1)

	// The trailing numeric token is the running balance; earlier tokens are
	// candidate transaction amounts. Explicit signs override the heuristic.
	amount := 0.0
	txnType := domain.Debit
	if len(amounts) >= 1 {
		for _, token := range amounts[:len(amounts)-1] {
			clean := strings.ReplaceAll(token, ",", "")
			switch {
			case strings.HasPrefix(clean, "+"):
				amount = parseAmount(clean[1:])
				txnType = domain.Credit
			case strings.HasPrefix(clean, "-"):
				amount = parseAmount(clean[1:])
				txnType = domain.Debit
			default:
				if v := parseAmount(clean); v > 0 {
					if strings.Contains(record, "RECEIVED") || strings.Contains(record, "+") {
						txnType = domain.Credit
					}
					amount = v
				}
			}
		}
	}
	if amount == 0 {
		return domain.Transaction{}, false
	}

	description := rest
	if reference != "" {
		description = strings.ReplaceAll(description, reference, "")
	}
	description = kotakAmountPattern.ReplaceAllString(description, "")
	description = kotakLabelPattern.ReplaceAllString(description, "")
	description = strings.TrimSpace(whitespace.ReplaceAllString(description, " "))

	description = strings.TrimPrefix(description, "UPI/")
	description = strings.TrimPrefix(description, "MB:")

	// Merchant name is the part before the first slash.
	merchant := description
	if idx := strings.Index(description, "/"); idx >= 0 {
		merchant = strings.TrimSpace(description[:idx])
	}

	date, err := time.Parse("02 Jan, 2006", dateMatch)
	if err != nil {
		return domain.Transaction{}, false
	}

	return domain.Transaction{
		ID:          fmt.Sprintf("txn-%d-%d", index, date.Unix()),
		Date:        date,
		Description: merchant,
		Amount:      amount,
		Type:        txnType,
		Category:    Categorize(description),
		BankName:    p.BankName(),
	}, true
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

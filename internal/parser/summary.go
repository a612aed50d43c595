package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/finlens/statement-insights/internal/domain"
)

// Header/footer patterns for the Kotak statement summary block.
var (
	summaryAccountPattern = regexp.MustCompile(`Account #(\d+)`)
	summaryPeriodPattern  = regexp.MustCompile(`(\d{2}\s+\w{3},\s+\d{4})\s*-\s*(\d{2}\s+\w{3},\s+\d{4})`)
	summaryOpeningPattern = regexp.MustCompile(`Opening balance([\d,]+\.\d{2})`)
	summaryClosingPattern = regexp.MustCompile(`Closing balance([\d,]+\.\d{2})`)
	summaryDebitPattern   = regexp.MustCompile(`Total debited(\d+)\s+Transactions-([\d,]+\.\d{2})`)
	summaryCreditPattern  = regexp.MustCompile(`Total credited(\d+)\s+Transactions\+([\d,]+\.\d{2})`)
)

// ParseAccountSummary extracts descriptive metadata from statement headers
// and footers. Every field is best effort; absent markers leave zero values.
func ParseAccountSummary(text string) domain.AccountSummary {
	var s domain.AccountSummary

	if m := summaryAccountPattern.FindStringSubmatch(text); m != nil {
		s.AccountNumber = m[1]
	}
	if m := summaryPeriodPattern.FindStringSubmatch(text); m != nil {
		s.StatementPeriod = m[1] + " - " + m[2]
	}
	if m := summaryOpeningPattern.FindStringSubmatch(text); m != nil {
		s.OpeningBalance = parseAmount(m[1])
	}
	if m := summaryClosingPattern.FindStringSubmatch(text); m != nil {
		s.ClosingBalance = parseAmount(m[1])
	}
	if m := summaryDebitPattern.FindStringSubmatch(text); m != nil {
		s.DebitCount = atoi(m[1])
		s.TotalDebited = parseAmount(m[2])
	}
	if m := summaryCreditPattern.FindStringSubmatch(text); m != nil {
		s.CreditCount = atoi(m[1])
		s.TotalCredited = parseAmount(m[2])
	}

	return s
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

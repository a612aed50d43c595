package parser

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlens/statement-insights/internal/domain"
)

func TestKotakParse_SingleDebit(t *testing.T) {
	text := "01 Oct, 2025 UPI/ROMS PIZZA/payment/okaxis UPI-512345 -456.00 12,345.67\n"

	txns := (&KotakParser{}).Parse(text)
	require.Len(t, txns, 1)

	txn := txns[0]
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), txn.Date)
	assert.Equal(t, "ROMS PIZZA", txn.Description)
	assert.Equal(t, 456.00, txn.Amount)
	assert.Equal(t, domain.Debit, txn.Type)
	assert.Equal(t, domain.CategoryFood, txn.Category)
	assert.Equal(t, "Kotak Mahindra Bank", txn.BankName)
	require.NoError(t, txn.Validate())
}

func TestKotakParse_CreditBySign(t *testing.T) {
	text := "02 Oct, 2025 UPI/ATUL SHARMA/repayment UPI-998877 +1,500.00 13,845.67\n"

	txns := (&KotakParser{}).Parse(text)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.Credit, txns[0].Type)
	assert.Equal(t, 1500.00, txns[0].Amount)
}

func TestKotakParse_CreditByKeyword(t *testing.T) {
	text := "03 Oct, 2025 RECEIVED FROM ATUL SHARMA MB-2233 500.00 14,345.67\n"

	txns := (&KotakParser{}).Parse(text)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.Credit, txns[0].Type)
	assert.Equal(t, 500.00, txns[0].Amount)
	assert.Equal(t, domain.CategoryTransfer, txns[0].Category)
}

func TestKotakParse_BalanceLinesSkipped(t *testing.T) {
	text := "01 Oct, 2025 OPENING BALANCE 12,801.67\n" +
		"01 Oct, 2025 UPI/MADAN SWEETS/order UPI-1 -120.00 12,681.67\n" +
		"31 Oct, 2025 CLOSING BALANCE 11,000.00\n"

	txns := (&KotakParser{}).Parse(text)
	require.Len(t, txns, 1)
	assert.Equal(t, "MADAN SWEETS", txns[0].Description)
}

func TestKotakParse_ContinuationJoin(t *testing.T) {
	// A single transaction wrapped across three physical lines.
	text := "05 Oct, 2025 UPI/TAYAL MEDICAL\n" +
		"STORE/purchase/okhdfc\n" +
		"UPI-445566 -89.50 12,592.17\n"

	txns := (&KotakParser{}).Parse(text)
	require.Len(t, txns, 1)
	assert.Equal(t, "TAYAL MEDICAL STORE", txns[0].Description)
	assert.Equal(t, 89.50, txns[0].Amount)
	assert.Equal(t, domain.CategoryHealth, txns[0].Category)
}

func TestKotakParse_BalanceOnlyLineDropped(t *testing.T) {
	// Only one numeric token: that's the balance, so there is no amount.
	text := "06 Oct, 2025 SOME HEADER FRAGMENT 12,592.17\n"

	txns := (&KotakParser{}).Parse(text)
	assert.Empty(t, txns)
}

func TestKotakParse_RoundTrip(t *testing.T) {
	// A synthetic line built from a known tuple parses back to the same
	// type and amount; the description may be normalized.
	tests := []struct {
		date   string
		desc   string
		amount string
		sign   string
		want   domain.TransactionType
	}{
		{"01 Jan, 2025", "UPI/SWIGGY/lunch", "456.00", "-", domain.Debit},
		{"15 Feb, 2025", "UPI/FLIPKART/order", "2,199.00", "-", domain.Debit},
		{"28 Mar, 2025", "UPI/RAHUL VERMA/rent", "15,000.00", "+", domain.Credit},
	}
	for _, tt := range tests {
		line := fmt.Sprintf("%s %s UPI-100 %s%s 99,999.99\n", tt.date, tt.desc, tt.sign, tt.amount)
		txns := (&KotakParser{}).Parse(line)
		require.Len(t, txns, 1, "line: %s", line)
		assert.Equal(t, tt.want, txns[0].Type)
		assert.Equal(t, parseAmount(tt.amount), txns[0].Amount)
		assert.GreaterOrEqual(t, txns[0].Amount, 0.0)
	}
}

func TestKotakParse_MultiTransaction(t *testing.T) {
	text := "01 Oct, 2025 UPI/ROMS PIZZA/dinner UPI-1 -456.00 12,345.67\n" +
		"02 Oct, 2025 UPI/UBER INDIA/ride UPI-2 -230.00 12,115.67\n" +
		"03 Oct, 2025 RECEIVED FROM EMPLOYER NEFT MB-3 +50,000.00 62,115.67\n"

	txns := (&KotakParser{}).Parse(text)
	require.Len(t, txns, 3)

	// Order preserved, ids unique within the batch.
	seen := map[string]bool{}
	for _, txn := range txns {
		assert.False(t, seen[txn.ID], "duplicate id %s", txn.ID)
		seen[txn.ID] = true
	}
	assert.Equal(t, domain.CategoryTravel, txns[1].Category)
	assert.Equal(t, domain.Credit, txns[2].Type)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{"ROMS PIZZA/dinner", domain.CategoryFood},
		{"SWIGGY ORDER", domain.CategoryFood},
		{"AMAZON PAY", domain.CategoryShopping},
		{"TAYAL MEDICAL STORE", domain.CategoryHealth},
		{"AIRTEL RECHARGE", domain.CategoryBills},
		{"UBER TRIP", domain.CategoryTravel},
		{"NETFLIX.COM", domain.CategorySubscriptions},
		{"PVR CINEMA", domain.CategoryEntertainment},
		{"RECEIVED FROM ATUL", domain.CategoryTransfer},
		{"SALARY OCT", domain.CategoryTransfer},
		{"MYSTERY MERCHANT", domain.CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := Categorize(tt.desc); got != tt.want {
				t.Errorf("Categorize(%q) = %q, want %q", tt.desc, got, tt.want)
			}
		})
	}
}

func TestNewAndAutoDetect(t *testing.T) {
	p, err := New("kotak")
	require.NoError(t, err)
	assert.Equal(t, "Kotak Mahindra Bank", p.BankName())

	_, err = New("unknown-bank")
	assert.Error(t, err)

	p, err = AutoDetect("Kotak Mahindra Bank Account #1234 statement")
	require.NoError(t, err)
	assert.Equal(t, "Kotak Mahindra Bank", p.BankName())

	_, err = AutoDetect("some other bank entirely")
	assert.Error(t, err)
}

func TestParseAccountSummary(t *testing.T) {
	text := "Account #12345678\n" +
		"01 Oct, 2025 - 31 Oct, 2025\n" +
		"Opening balance12,801.67\n" +
		"Closing balance11,000.00\n" +
		"Total debited12 Transactions-3,456.78\n" +
		"Total credited3 Transactions+1,655.11\n"

	s := ParseAccountSummary(text)
	assert.Equal(t, "12345678", s.AccountNumber)
	assert.Equal(t, "01 Oct, 2025 - 31 Oct, 2025", s.StatementPeriod)
	assert.Equal(t, 12801.67, s.OpeningBalance)
	assert.Equal(t, 11000.00, s.ClosingBalance)
	assert.Equal(t, 12, s.DebitCount)
	assert.Equal(t, 3456.78, s.TotalDebited)
	assert.Equal(t, 3, s.CreditCount)
	assert.Equal(t, 1655.11, s.TotalCredited)
}

func TestParseAccountSummary_Empty(t *testing.T) {
	s := ParseAccountSummary("nothing recognizable here")
	assert.Equal(t, domain.AccountSummary{}, s)
}

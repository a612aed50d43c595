// Package parser is the deterministic, regex-driven counterpart to the AI
// extraction client. It recognizes transaction lines of known bank-statement
// families without any network dependency.
package parser

import (
	"fmt"
	"strings"

	"github.com/finlens/statement-insights/internal/domain"
)

// Parser converts raw statement text of one bank-format family into
// transactions.
type Parser interface {
	Parse(text string) []domain.Transaction
	BankName() string
}

// New returns the parser for the given bank key.
func New(bank string) (Parser, error) {
	switch strings.ToLower(bank) {
	case "kotak":
		return &KotakParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported bank %q", bank)
	}
}

// AutoDetect identifies the bank family from statement content.
func AutoDetect(text string) (Parser, error) {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "kotak") {
		return &KotakParser{}, nil
	}
	return nil, fmt.Errorf("could not detect bank from statement content")
}

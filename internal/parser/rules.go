package parser

import (
	"regexp"

	"github.com/finlens/statement-insights/internal/domain"
)

// categoryRule maps a merchant/description pattern to a category. Rules are
// ordered; the first match wins.
type categoryRule struct {
	pattern  *regexp.Regexp
	category string
}

// categoryRules is the keyword table behind Categorize. It shares the domain
// taxonomy with the AI prompt so both extraction paths label consistently.
// Salary/credit keywords fold into Transfer, which is where incoming money
// lands in the shared set.
var categoryRules = []categoryRule{
	{regexp.MustCompile(`(?i)pizza|sweets|shake|cafe|ice cream|food|swiggy|zomato|restaurant|taco bell|donald|grill|dairy|blinkit`), domain.CategoryFood},
	{regexp.MustCompile(`(?i)amazon|flipkart|shop|provisi|mobile|hardware|provision`), domain.CategoryShopping},
	{regexp.MustCompile(`(?i)hospital|medical|pharmacy|medicos|chemist`), domain.CategoryHealth},
	{regexp.MustCompile(`(?i)airtel|jio|electricity|gas|water|bill|recharge`), domain.CategoryBills},
	{regexp.MustCompile(`(?i)uber|ola|auto care|petrol|fuel|metro`), domain.CategoryTravel},
	{regexp.MustCompile(`(?i)netflix|spotify|prime video|hotstar`), domain.CategorySubscriptions},
	{regexp.MustCompile(`(?i)movie|cinema|game|gaming`), domain.CategoryEntertainment},
	{regexp.MustCompile(`(?i)received from|trf to|neft|imps|rtgs|salary`), domain.CategoryTransfer},
}

// Categorize returns the first matching category for a description, or Other.
func Categorize(description string) string {
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(description) {
			return rule.category
		}
	}
	return domain.CategoryOther
}

package gemini

import (
	"encoding/json"
	"strings"

	"github.com/finlens/statement-insights/internal/domain"
)

// categoryHints gives the model a short description of what belongs in each
// category. The set itself comes from the shared domain taxonomy.
var categoryHints = map[string]string{
	domain.CategoryFood:          "restaurants, cafes, food delivery, sweets, ice cream",
	domain.CategoryShopping:      "retail, provisions, mobile shops, general stores",
	domain.CategoryHealth:        "hospitals, medical stores, pharmacies",
	domain.CategoryBills:         "phone recharge, electricity, internet, water",
	domain.CategoryTravel:        "auto, cab, petrol, fuel, metro",
	domain.CategoryTransfer:      "money received from family/friends, bank transfers",
	domain.CategoryEntertainment: "movies, games, streaming",
	domain.CategorySubscriptions: "Netflix, Spotify, Amazon Prime",
	domain.CategoryOther:         "anything that doesn't fit above",
}

// extractionPrompt is the fixed instruction block prepended to statement text
// for the full extraction call.
func extractionPrompt() string {
	var b strings.Builder
	b.WriteString("You are a financial document parser. Analyze the following bank statement text and extract all transactions.\n\n")
	b.WriteString("For each transaction, extract:\n")
	b.WriteString("- date: The transaction date in YYYY-MM-DD format\n")
	b.WriteString("- description: The merchant/payee name (clean, human-readable)\n")
	b.WriteString("- amount: The transaction amount as a positive number\n")
	b.WriteString("- type: Either \"debit\" (money spent/sent) or \"credit\" (money received)\n")
	b.WriteString("- category: One of these categories based on the merchant/description:\n")
	for _, cat := range domain.Categories() {
		b.WriteString("  - \"" + cat + "\" (" + categoryHints[cat] + ")\n")
	}
	b.WriteString("\nReturn ONLY a valid JSON array of transactions. No explanations, no markdown, just the JSON array.\n")
	b.WriteString("Example format:\n")
	b.WriteString("[\n")
	b.WriteString(`  {"date": "2025-10-01", "description": "Swiggy Food Order", "amount": 456.00, "type": "debit", "category": "Food & Dining"},` + "\n")
	b.WriteString(`  {"date": "2025-10-02", "description": "Salary from TechCorp", "amount": 50000.00, "type": "credit", "category": "Transfer"}` + "\n")
	b.WriteString("]\n\n")
	b.WriteString("IMPORTANT:\n")
	b.WriteString("- Extract ALL transactions from the statement\n")
	b.WriteString("- For UPI transactions, extract the merchant name (e.g., \"UPI/ROMS PIZZA/...\" -> \"Roms Pizza\")\n")
	b.WriteString("- For transfers like \"RECEIVED FROM ATUL SHARMA\", the type is \"credit\"\n")
	b.WriteString("- Amounts with \"-\" or in DEBIT column are debits\n")
	b.WriteString("- Amounts with \"+\" or in CREDIT column are credits\n")
	b.WriteString("- Skip opening/closing balance lines, only extract actual transactions\n\n")
	b.WriteString("Bank Statement Text:\n")
	return b.String()
}

// countPrompt is the cheaper instruction block used only for ETA estimation.
func countPrompt() string {
	return "You are analyzing a bank statement. Count ONLY the number of actual transactions (debits and credits).\n\n" +
		"DO NOT count:\n" +
		"- Opening balance\n" +
		"- Closing balance\n" +
		"- Statement headers\n" +
		"- Account summaries\n\n" +
		"Return ONLY a single number representing the transaction count. No text, no explanation, just the number.\n\n" +
		"Bank Statement Text:\n"
}

// recategorizePrompt asks for new categories for existing transactions,
// keyed by id.
func recategorizePrompt(txns []domain.Transaction) (string, error) {
	type item struct {
		ID              string `json:"id"`
		Description     string `json:"description"`
		CurrentCategory string `json:"currentCategory"`
	}
	items := make([]item, 0, len(txns))
	for _, t := range txns {
		items = append(items, item{ID: t.ID, Description: t.Description, CurrentCategory: t.Category})
	}
	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Given these transactions, suggest better categories for each. Return a JSON array with just the id and new category.\n\n")
	b.WriteString("Categories to choose from:\n")
	for _, cat := range domain.Categories() {
		b.WriteString("- " + cat + "\n")
	}
	b.WriteString("\nTransactions:\n")
	b.Write(payload)
	b.WriteString("\n\nReturn format: [{\"id\": \"xxx\", \"category\": \"Food & Dining\"}, ...]\n")
	return b.String(), nil
}

// cleanModelJSON strips Markdown code fences the model sometimes wraps its
// output in despite instructions, then trims to the outermost JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

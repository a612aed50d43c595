// Package gemini is the AI extraction client: it turns raw statement text
// into structured transactions via a remote model, with retry/backoff for
// transient overload and strict handling of malformed responses.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/finlens/statement-insights/internal/domain"
)

// DefaultModelName is the model used for all statement calls.
const DefaultModelName = "gemini-2.5-flash"

// Generator is the transport the client talks through. Production uses the
// GenAI API; tests substitute a scripted fake.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// GenAIGenerator backs Generator with the hosted GenAI API.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator creates the production transport. Credentials come from
// the environment (GEMINI_API_KEY / application default credentials).
func NewGenAIGenerator(ctx context.Context) (*GenAIGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create genai client: %w", err)
	}
	return &GenAIGenerator{client: client, model: DefaultModelName}, nil
}

// GenerateText sends one user prompt and returns the raw text response.
func (g *GenAIGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response from model")
	}
	return text, nil
}

// Client implements extraction, counting and recategorization on top of a
// Generator.
type Client struct {
	gen   Generator
	log   zerolog.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient wires a Client around the given transport.
func NewClient(gen Generator, log zerolog.Logger) *Client {
	return &Client{
		gen:   gen,
		log:   log,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Extract runs the full extraction call for one statement. Transient
// transport errors are retried up to 5 attempts with exponential backoff;
// a response that is not a JSON array fails immediately with the raw text
// preserved for diagnosis.
func (c *Client) Extract(ctx context.Context, statementText, batchID string) domain.ExtractionResult {
	prompt := extractionPrompt() + statementText

	var lastErr error
	for attempt := 1; attempt <= extractMaxAttempts; attempt++ {
		raw, err := c.gen.GenerateText(ctx, prompt)
		if err != nil {
			lastErr = err
			if isRetryable(err) && attempt < extractMaxAttempts {
				wait := extractBackoff(attempt)
				c.log.Warn().
					Int("attempt", attempt).
					Dur("wait", wait).
					Err(err).
					Msg("Model overloaded, retrying extraction")
				if serr := c.sleep(ctx, wait); serr != nil {
					return domain.ExtractionResult{Success: false, Error: serr.Error()}
				}
				continue
			}
			return domain.ExtractionResult{Success: false, Error: err.Error()}
		}

		txns, perr := parseExtraction(raw, batchID)
		if perr != nil {
			// A malformed response is a prompt-contract violation, not a
			// transient condition. Never retried.
			return domain.ExtractionResult{
				Success:     false,
				Error:       "failed to parse AI response as JSON",
				RawResponse: raw,
			}
		}
		return domain.ExtractionResult{Success: true, Transactions: txns}
	}

	return domain.ExtractionResult{
		Success: false,
		Error:   fmt.Sprintf("max retries exceeded: %v", lastErr),
	}
}

// rawTransaction mirrors one item of the model's JSON array before coercion.
type rawTransaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      json.RawMessage `json:"amount"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
}

func parseExtraction(raw, batchID string) ([]domain.Transaction, error) {
	clean := cleanModelJSON(raw)

	var items []rawTransaction
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		return nil, err
	}

	txns := make([]domain.Transaction, 0, len(items))
	for i, item := range items {
		t := domain.Transaction{
			ID:          fmt.Sprintf("%s-%d", batchID, i),
			Description: item.Description,
			Amount:      math.Abs(coerceNumber(item.Amount)),
			Type:        domain.ParseTransactionType(item.Type),
			Category:    item.Category,
			BankName:    "Auto-detected",
		}
		if t.Description == "" {
			t.Description = "Unknown"
		}
		if t.Category == "" {
			t.Category = domain.CategoryOther
		}
		if d, err := time.Parse("2006-01-02", item.Date); err == nil {
			t.Date = d
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// coerceNumber accepts a JSON number or a numeric string, defaulting to 0.
func coerceNumber(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			return f
		}
	}
	return 0
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// Count runs the cheap pre-flight call that only estimates how many
// transactions the statement holds, for ETA display.
func (c *Client) Count(ctx context.Context, statementText string) domain.CountResult {
	prompt := countPrompt() + statementText

	for attempt := 1; attempt <= countMaxAttempts; attempt++ {
		raw, err := c.gen.GenerateText(ctx, prompt)
		if err != nil {
			if isRetryable(err) && attempt < countMaxAttempts {
				if serr := c.sleep(ctx, countBackoff(attempt)); serr != nil {
					return domain.CountResult{Success: false, Error: serr.Error()}
				}
				continue
			}
			return domain.CountResult{Success: false, Error: err.Error()}
		}

		digits := nonDigits.ReplaceAllString(strings.TrimSpace(raw), "")
		count, cerr := strconv.Atoi(digits)
		if cerr != nil || count < 0 {
			return domain.CountResult{Success: false, Error: "could not parse transaction count"}
		}

		return domain.CountResult{
			Success:          true,
			Count:            count,
			EstimatedSeconds: domain.EstimateSeconds(count),
		}
	}

	return domain.CountResult{Success: false, Error: "max retries exceeded"}
}

// Recategorize asks the model for better categories and applies only the
// category field, keyed by transaction id. Best effort: any failure returns
// the input unchanged, and neither order nor length ever changes.
func (c *Client) Recategorize(ctx context.Context, txns []domain.Transaction) []domain.Transaction {
	if len(txns) == 0 {
		return txns
	}

	prompt, err := recategorizePrompt(txns)
	if err != nil {
		return txns
	}

	raw, err := c.gen.GenerateText(ctx, prompt)
	if err != nil {
		c.log.Warn().Err(err).Msg("Recategorization call failed, keeping original categories")
		return txns
	}

	var updates []struct {
		ID       string `json:"id"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &updates); err != nil {
		c.log.Warn().Err(err).Msg("Recategorization response unparseable, keeping original categories")
		return txns
	}

	byID := make(map[string]string, len(updates))
	for _, u := range updates {
		if domain.ValidCategory(u.Category) {
			byID[u.ID] = u.Category
		}
	}

	out := make([]domain.Transaction, len(txns))
	copy(out, txns)
	for i := range out {
		if cat, ok := byID[out[i].ID]; ok {
			out[i].Category = cat
		}
	}
	return out
}

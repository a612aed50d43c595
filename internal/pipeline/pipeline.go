// Package pipeline runs the per-file processing chain: decrypt the PDF if
// needed, pull its text layer, then hand the text to the model for
// extraction. Steps share a State struct and execute in order, so a step can
// rely on everything before it having populated its outputs.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/finlens/statement-insights/internal/domain"
	"github.com/finlens/statement-insights/internal/gemini"
	"github.com/finlens/statement-insights/internal/pdfdoc"
)

// Extractor is the model-facing surface the pipeline needs. *gemini.Client
// satisfies it; tests substitute fakes.
type Extractor interface {
	Extract(ctx context.Context, statementText, batchID string) domain.ExtractionResult
	Count(ctx context.Context, statementText string) domain.CountResult
}

// Decryptor removes PDF encryption given the right password.
type Decryptor interface {
	Decrypt(ctx context.Context, data []byte, password string) ([]byte, error)
}

// Request is one file's worth of input.
type Request struct {
	FileName string
	Data     []byte
	Password string
	BatchID  string
}

// Result is what a fully processed file produces.
type Result struct {
	FileName            string               `json:"fileName"`
	Transactions        []domain.Transaction `json:"transactions"`
	TransactionCount    int                  `json:"transactionCount"`
	ExtractedTextLength int                  `json:"extractedTextLength"`
}

// State is the shared scratch space steps read from and write to.
type State struct {
	Request Request

	// Populated by steps as the file moves through the chain.
	Decrypted []byte
	Text      string
	Result    *Result
}

// Step is one stage of the per-file chain.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// Runner executes steps in order, stopping at the first failure.
type Runner struct {
	steps []Step
	log   zerolog.Logger
}

func NewRunner(log zerolog.Logger, steps ...Step) *Runner {
	return &Runner{steps: steps, log: log}
}

func (r *Runner) Run(ctx context.Context, state *State) error {
	for i, step := range r.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// DecryptStep strips encryption from the incoming PDF. Unencrypted files
// pass through untouched; encrypted files without a password fail with
// pdfdoc.ErrPasswordRequired so the caller can prompt for one.
type DecryptStep struct {
	Decryptor Decryptor
}

func (s *DecryptStep) Execute(ctx context.Context, state *State) error {
	out, err := s.Decryptor.Decrypt(ctx, state.Request.Data, state.Request.Password)
	if err != nil {
		return err
	}
	state.Decrypted = out
	return nil
}

// ExtractTextStep pulls the text layer out of the decrypted PDF.
type ExtractTextStep struct {
	// Extract defaults to pdfdoc.ExtractText; tests swap it out.
	Extract func(data []byte) (string, error)
}

func (s *ExtractTextStep) Execute(ctx context.Context, state *State) error {
	extract := s.Extract
	if extract == nil {
		extract = pdfdoc.ExtractText
	}
	text, err := extract(state.Decrypted)
	if err != nil {
		return err
	}
	state.Text = text
	return nil
}

// AIExtractStep sends the statement text to the model and collects the
// normalized transactions.
type AIExtractStep struct {
	Extractor Extractor
}

func (s *AIExtractStep) Execute(ctx context.Context, state *State) error {
	res := s.Extractor.Extract(ctx, state.Text, state.Request.BatchID)
	if !res.Success {
		return fmt.Errorf("extraction failed: %s", res.Error)
	}
	state.Result = &Result{
		FileName:            state.Request.FileName,
		Transactions:        res.Transactions,
		TransactionCount:    len(res.Transactions),
		ExtractedTextLength: len(state.Text),
	}
	return nil
}

// Processor bundles the collaborators needed to take a raw upload all the
// way to transactions.
type Processor struct {
	decryptor Decryptor
	extractor Extractor
	log       zerolog.Logger

	extractText func(data []byte) (string, error)
}

func NewProcessor(decryptor Decryptor, extractor Extractor, log zerolog.Logger) *Processor {
	return &Processor{
		decryptor:   decryptor,
		extractor:   extractor,
		log:         log,
		extractText: pdfdoc.ExtractText,
	}
}

// Process runs the full chain for one file.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	state := &State{Request: req}
	runner := NewRunner(p.log,
		&DecryptStep{Decryptor: p.decryptor},
		&ExtractTextStep{Extract: p.extractText},
		&AIExtractStep{Extractor: p.extractor},
	)

	if err := runner.Run(ctx, state); err != nil {
		p.log.Error().Str("file", req.FileName).Err(err).Msg("Processing failed")
		return nil, err
	}

	p.log.Info().
		Str("file", req.FileName).
		Int("transactions", state.Result.TransactionCount).
		Msg("Processing complete")
	return state.Result, nil
}

// Count runs the cheap pre-flight estimate: decrypt, extract, ask the model
// for a transaction count. Password and readability problems surface as
// errors; a model failure degrades to a default estimate instead, since the
// count only feeds the progress display.
func (p *Processor) Count(ctx context.Context, req Request) (domain.CountResult, error) {
	state := &State{Request: req}
	runner := NewRunner(p.log,
		&DecryptStep{Decryptor: p.decryptor},
		&ExtractTextStep{Extract: p.extractText},
	)
	if err := runner.Run(ctx, state); err != nil {
		return domain.CountResult{}, err
	}

	res := p.extractor.Count(ctx, state.Text)
	if !res.Success {
		p.log.Warn().
			Str("file", req.FileName).
			Str("error", res.Error).
			Msg("Count estimate failed, using default")
		return domain.CountResult{
			Success:          false,
			Count:            0,
			EstimatedSeconds: 60,
			Error:            res.Error,
		}, nil
	}
	return res, nil
}

// Ensure the concrete collaborators satisfy the interfaces.
var (
	_ Extractor = (*gemini.Client)(nil)
	_ Decryptor = (*pdfdoc.Decryptor)(nil)
)

// Package uploader drives a batch of statement uploads through the
// processing pipeline one file at a time. It owns the batch state machine:
// which files are queued, which one is in flight, what stage it is at, and
// how long the rest of the batch is expected to take.
package uploader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finlens/statement-insights/internal/domain"
	"github.com/finlens/statement-insights/internal/gemini"
	"github.com/finlens/statement-insights/internal/pdfdoc"
	"github.com/finlens/statement-insights/internal/pipeline"
)

// Processor is the per-file pipeline surface the batch drives.
// *pipeline.Processor satisfies it.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	Count(ctx context.Context, req pipeline.Request) (domain.CountResult, error)
}

// Phase is the coarse batch lifecycle, orthogonal to per-file stages.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseAwaitingPassword Phase = "awaiting_password"
	PhaseProcessing       Phase = "processing"
	PhaseDone             Phase = "done"
)

// FileInput is one uploaded file before the batch takes ownership of it.
type FileInput struct {
	Name string
	Data []byte
}

// PasswordSubmission carries the user's answer to the password prompt.
// Shared applies to every prompted file; PerFile entries override it.
type PasswordSubmission struct {
	Shared  string
	PerFile map[string]string
}

const (
	maxFileAttempts  = 3
	defaultClearWait = 2 * time.Second
)

// retryWait is the delay before re-running a failed file: 2s, 4s.
func retryWait(attempt int) time.Duration {
	return time.Duration(attempt) * 2 * time.Second
}

// Batch owns one upload session. All state mutation goes through methods
// that hold the mutex; snapshots returned to callers are copies.
type Batch struct {
	id        string
	processor Processor
	log       zerolog.Logger

	// Injection points for tests.
	encrypted func(data []byte) bool
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
	clearWait time.Duration

	mu         sync.Mutex
	phase      Phase
	files      []domain.UploadedFile
	payloads   map[string][]byte
	passwords  map[string]string
	pendingIDs []string

	totalEstimatedSeconds int
	startedAt             time.Time

	onComplete func(txns []domain.Transaction)
}

func New(processor Processor, log zerolog.Logger) *Batch {
	return &Batch{
		id:        uuid.NewString(),
		processor: processor,
		log:       log,
		encrypted: pdfdoc.IsEncrypted,
		sleep:     sleepCtx,
		now:       time.Now,
		clearWait: defaultClearWait,
		phase:     PhaseIdle,
		payloads:  make(map[string][]byte),
		passwords: make(map[string]string),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ID returns the batch identifier used to key extracted transaction IDs.
func (b *Batch) ID() string { return b.id }

// OnComplete registers the callback that receives the aggregated
// transactions once the whole batch has drained.
func (b *Batch) OnComplete(fn func(txns []domain.Transaction)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onComplete = fn
}

// Add queues new files. Encrypted files are flagged and the batch moves to
// the password prompt; it reports whether a prompt is needed.
func (b *Batch) Add(files []FileInput) (needsPassword bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase == PhaseProcessing {
		return false, fmt.Errorf("batch is processing, cannot add files")
	}

	for _, f := range files {
		id := uuid.NewString()
		status := domain.StatusPending
		if b.encrypted(f.Data) {
			status = domain.StatusPasswordRequired
			b.pendingIDs = append(b.pendingIDs, id)
		}
		b.files = append(b.files, domain.UploadedFile{
			ID:       id,
			FileName: f.Name,
			Status:   status,
			Stage:    domain.StageQueued,
		})
		b.payloads[id] = f.Data
	}

	if len(b.pendingIDs) > 0 {
		b.phase = PhaseAwaitingPassword
		return true, nil
	}
	return false, nil
}

// CancelPasswordPrompt drops only the files that were waiting on a
// password. Files added earlier in the batch stay queued.
func (b *Batch) CancelPasswordPrompt() {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending := make(map[string]bool, len(b.pendingIDs))
	for _, id := range b.pendingIDs {
		pending[id] = true
	}

	kept := b.files[:0]
	for _, f := range b.files {
		if pending[f.ID] {
			delete(b.payloads, f.ID)
			delete(b.passwords, f.ID)
			continue
		}
		kept = append(kept, f)
	}
	b.files = kept
	b.pendingIDs = nil
	if b.phase == PhaseAwaitingPassword {
		b.phase = PhaseIdle
	}
}

// SubmitPasswords records passwords for the prompted files and closes the
// prompt. Processing starts with the next Run call.
func (b *Batch) SubmitPasswords(sub PasswordSubmission) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase != PhaseAwaitingPassword {
		return fmt.Errorf("no password prompt open")
	}

	for _, id := range b.pendingIDs {
		pw := sub.Shared
		if specific, ok := sub.PerFile[id]; ok {
			pw = specific
		}
		b.passwords[id] = pw
		for i := range b.files {
			if b.files[i].ID == id {
				b.files[i].Status = domain.StatusPending
			}
		}
	}
	b.pendingIDs = nil
	b.phase = PhaseIdle
	return nil
}

// Remove drops a file that has not started processing yet.
func (b *Batch) Remove(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, f := range b.files {
		if f.ID != id {
			continue
		}
		if f.Status != domain.StatusPending && f.Status != domain.StatusPasswordRequired {
			return fmt.Errorf("file %s already %s", f.FileName, f.Status)
		}
		b.files = append(b.files[:i], b.files[i+1:]...)
		delete(b.payloads, id)
		delete(b.passwords, id)
		b.dropPendingID(id)
		return nil
	}
	return fmt.Errorf("no such file: %s", id)
}

func (b *Batch) dropPendingID(id string) {
	for i, pid := range b.pendingIDs {
		if pid == id {
			b.pendingIDs = append(b.pendingIDs[:i], b.pendingIDs[i+1:]...)
			return
		}
	}
}

// RetryFile re-queues an errored file. If the file is encrypted it goes
// back through the password prompt first.
func (b *Batch) RetryFile(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.files {
		f := &b.files[i]
		if f.ID != id {
			continue
		}
		if f.Status != domain.StatusError {
			return fmt.Errorf("file %s is not in an error state", f.FileName)
		}
		if !domain.CanTransition(f.Stage, domain.StageQueued) {
			return fmt.Errorf("cannot re-queue from stage %s", f.Stage)
		}
		f.Stage = domain.StageQueued
		f.Status = domain.StatusPending
		f.Error = ""

		if b.encrypted(b.payloads[id]) {
			delete(b.passwords, id)
			b.pendingIDs = append(b.pendingIDs, id)
			f.Status = domain.StatusPasswordRequired
			b.phase = PhaseAwaitingPassword
		}
		return nil
	}
	return fmt.Errorf("no such file: %s", id)
}

// Files returns a snapshot of the batch's file list.
func (b *Batch) Files() []domain.UploadedFile {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.UploadedFile, len(b.files))
	copy(out, b.files)
	return out
}

// Phase returns the coarse batch state.
func (b *Batch) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// RemainingSeconds is the accumulated per-file estimate minus elapsed wall
// time, floored at zero. Meaningful only once processing has started.
func (b *Batch) RemainingSeconds() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.startedAt.IsZero() {
		return b.totalEstimatedSeconds
	}
	remaining := b.totalEstimatedSeconds - int(b.now().Sub(b.startedAt).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Run processes every pending file in order and returns the aggregated
// transactions. Files that fail stay in the list with their error; the rest
// of the batch continues. The file list clears itself shortly after the
// batch drains so a finished session does not linger in status views.
func (b *Batch) Run(ctx context.Context) ([]domain.Transaction, error) {
	b.mu.Lock()
	if b.phase == PhaseProcessing {
		b.mu.Unlock()
		return nil, fmt.Errorf("batch already processing")
	}
	if b.phase == PhaseAwaitingPassword {
		b.mu.Unlock()
		return nil, fmt.Errorf("password prompt still open")
	}
	b.phase = PhaseProcessing
	b.startedAt = b.now()
	queue := make([]string, 0, len(b.files))
	for _, f := range b.files {
		if f.Status == domain.StatusPending {
			queue = append(queue, f.ID)
		}
	}
	b.mu.Unlock()

	var results []domain.Transaction
	for _, id := range queue {
		txns, err := b.processFile(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				b.setPhase(PhaseIdle)
				return results, ctx.Err()
			}
			continue
		}
		results = append(results, txns...)
	}

	b.mu.Lock()
	b.phase = PhaseDone
	done := b.onComplete
	b.mu.Unlock()

	if done != nil && len(results) > 0 {
		done(results)
	}

	time.AfterFunc(b.clearWait, b.clearFinished)
	return results, nil
}

// processFile walks one file through the stage sequence, retrying the whole
// per-file operation (count included) on transient model errors. The file's
// own ID seeds the pipeline request so transaction IDs minted downstream
// stay unique across the files of one batch.
func (b *Batch) processFile(ctx context.Context, id string) ([]domain.Transaction, error) {
	fileName, data, password := b.fileInput(id)
	req := pipeline.Request{
		FileName: fileName,
		Data:     data,
		Password: password,
		BatchID:  id,
	}

	b.setStatus(id, domain.StatusProcessing)
	b.setStage(id, domain.StageUploading)
	if password != "" {
		b.setStage(id, domain.StageDecrypting)
	}
	b.setStage(id, domain.StageScanning)

	var result *pipeline.Result
	var err error
	estimated := false
	for attempt := 1; attempt <= maxFileAttempts; attempt++ {
		result, err = b.runOnce(ctx, id, req, &estimated)
		if err == nil {
			break
		}
		if !gemini.IsTransient(err.Error()) || attempt == maxFileAttempts {
			return nil, b.failFile(id, fileName, err)
		}
		wait := retryWait(attempt)
		b.log.Warn().
			Str("file", fileName).
			Int("attempt", attempt).
			Dur("wait", wait).
			Err(err).
			Msg("Transient failure, retrying file")
		if serr := b.sleep(ctx, wait); serr != nil {
			return nil, b.failFile(id, fileName, serr)
		}
	}

	b.setStage(id, domain.StageAnalyzing)
	b.mu.Lock()
	for i := range b.files {
		if b.files[i].ID == id {
			b.files[i].TransactionCount = result.TransactionCount
		}
	}
	b.mu.Unlock()

	b.setStage(id, domain.StageComplete)
	b.setStatus(id, domain.StatusCompleted)
	b.log.Info().
		Str("file", fileName).
		Int("transactions", result.TransactionCount).
		Msg("File complete")
	return result.Transactions, nil
}

// runOnce is one attempt at the count-then-extract sequence. The estimate
// feeds the batch ETA only once, on the first successful count; a soft-failed
// count (Success false) contributes nothing.
func (b *Batch) runOnce(ctx context.Context, id string, req pipeline.Request, estimated *bool) (*pipeline.Result, error) {
	count, err := b.processor.Count(ctx, req)
	if err != nil {
		return nil, err
	}
	if !*estimated && count.Success && count.Count > 0 {
		b.recordEstimate(id, count)
		*estimated = true
	}

	b.setStage(id, domain.StageExtracting)
	return b.processor.Process(ctx, req)
}

func (b *Batch) fileInput(id string) (name string, data []byte, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range b.files {
		if f.ID == id {
			name = f.FileName
		}
	}
	return name, b.payloads[id], b.passwords[id]
}

func (b *Batch) failFile(id, fileName string, err error) error {
	b.log.Error().Str("file", fileName).Err(err).Msg("File failed")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.files {
		if b.files[i].ID == id {
			b.files[i].Stage = domain.StageError
			b.files[i].Status = domain.StatusError
			b.files[i].Error = err.Error()
		}
	}
	return err
}

func (b *Batch) setStage(id string, stage domain.ProcessingStage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.files {
		if b.files[i].ID != id {
			continue
		}
		if !domain.CanTransition(b.files[i].Stage, stage) {
			b.log.Warn().
				Str("from", string(b.files[i].Stage)).
				Str("to", string(stage)).
				Msg("Ignoring invalid stage transition")
			return
		}
		b.files[i].Stage = stage
	}
}

func (b *Batch) setStatus(id string, status domain.FileStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.files {
		if b.files[i].ID == id {
			b.files[i].Status = status
		}
	}
}

func (b *Batch) setPhase(phase Phase) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.phase = phase
}

func (b *Batch) recordEstimate(id string, count domain.CountResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalEstimatedSeconds += count.EstimatedSeconds
	for i := range b.files {
		if b.files[i].ID == id {
			b.files[i].EstimatedTransactions = count.Count
			b.files[i].EstimatedSeconds = count.EstimatedSeconds
		}
	}
}

// clearFinished drops terminal files, keeping errored ones visible so the
// user can retry them.
func (b *Batch) clearFinished() {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.files[:0]
	for _, f := range b.files {
		if f.Status == domain.StatusCompleted {
			delete(b.payloads, f.ID)
			delete(b.passwords, f.ID)
			continue
		}
		kept = append(kept, f)
	}
	b.files = kept
}

var _ Processor = (*pipeline.Processor)(nil)

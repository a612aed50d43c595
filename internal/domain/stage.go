package domain

// ProcessingStage is the fine-grained step a single file is currently in.
type ProcessingStage string

const (
	StageQueued     ProcessingStage = "queued"
	StageUploading  ProcessingStage = "uploading"
	StageDecrypting ProcessingStage = "decrypting"
	StageScanning   ProcessingStage = "scanning"
	StageExtracting ProcessingStage = "extracting"
	StageAnalyzing  ProcessingStage = "analyzing"
	StageComplete   ProcessingStage = "complete"
	StageError      ProcessingStage = "error"
)

// stageTransitions is the closed transition table for the per-file state
// machine. Decrypting is optional (skipped when no password was supplied),
// and any non-terminal stage may fail into StageError. The only exit from a
// terminal stage is error -> queued, used when a failed file is re-queued.
var stageTransitions = map[ProcessingStage][]ProcessingStage{
	StageQueued:     {StageUploading, StageError},
	StageUploading:  {StageDecrypting, StageScanning, StageError},
	StageDecrypting: {StageScanning, StageError},
	StageScanning:   {StageExtracting, StageError},
	StageExtracting: {StageAnalyzing, StageError},
	StageAnalyzing:  {StageComplete, StageError},
	StageComplete:   {},
	StageError:      {StageQueued},
}

// CanTransition reports whether moving from one stage to another is legal.
// Self-transitions are allowed so a stage can be re-announced with updated
// metadata (the scanning stage does this when the estimate arrives).
func CanTransition(from, to ProcessingStage) bool {
	if from == to {
		_, known := stageTransitions[from]
		return known
	}
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a stage has no forward transitions left.
func (s ProcessingStage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// FileStatus is the coarse lifecycle state of a queued file.
type FileStatus string

const (
	StatusPending          FileStatus = "pending"
	StatusProcessing       FileStatus = "processing"
	StatusCompleted        FileStatus = "completed"
	StatusError            FileStatus = "error"
	StatusPasswordRequired FileStatus = "password_required"
)

// UploadedFile is one entry in an upload batch. It is owned and mutated
// exclusively by the orchestrator; everyone else sees copies.
type UploadedFile struct {
	ID                    string          `json:"id"`
	FileName              string          `json:"fileName"`
	Status                FileStatus      `json:"status"`
	Stage                 ProcessingStage `json:"stage"`
	EstimatedTransactions int             `json:"estimatedTransactions,omitempty"`
	EstimatedSeconds      int             `json:"estimatedSeconds,omitempty"`
	TransactionCount      int             `json:"transactionCount,omitempty"`
	Error                 string          `json:"error,omitempty"`
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finlens/statement-insights/internal/api/middleware"
	"github.com/finlens/statement-insights/internal/domain"
	"github.com/finlens/statement-insights/internal/gemini"
	"github.com/finlens/statement-insights/internal/pdfdoc"
	"github.com/finlens/statement-insights/internal/pipeline"
	"github.com/finlens/statement-insights/internal/store"
	"github.com/finlens/statement-insights/internal/uploader"
)

// Uploads bigger than this are rejected before buffering.
const maxUploadBytes = 32 << 20

// Processor is the per-file pipeline surface handlers drive.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	Count(ctx context.Context, req pipeline.Request) (domain.CountResult, error)
}

// userID resolves the caller from the X-User-ID header. Authentication
// proper sits in front of this service; an absent header maps to a shared
// anonymous session.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "anonymous"
}

// StatementsHandler handles statement upload and processing endpoints.
type StatementsHandler struct {
	processor Processor
	txns      store.TransactionStore
	fallback  store.TransactionStore
	profiles  store.ProfileStore
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler. fallback receives
// batches when the primary transaction store is unavailable; pass the same
// store twice when there is no separate fallback.
func NewStatementsHandler(processor Processor, txns, fallback store.TransactionStore, profiles store.ProfileStore, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		processor: processor,
		txns:      txns,
		fallback:  fallback,
		profiles:  profiles,
		log:       log,
	}
}

// readUpload pulls one file and the optional password out of a multipart
// form.
func readUpload(r *http.Request) (name string, data []byte, password string, err error) {
	if err = r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, "", err
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, "", err
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		return "", nil, "", err
	}
	return header.Filename, data, r.FormValue("password"), nil
}

// Upload handles POST /api/upload: one statement in, transactions out.
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, data, password, err := readUpload(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "A PDF file is required")
		return
	}

	result, err := h.processor.Process(ctx, pipeline.Request{
		FileName: name,
		Data:     data,
		Password: password,
		BatchID:  uuid.NewString(),
	})
	if err != nil {
		h.writeProcessingError(w, name, err)
		return
	}

	h.saveBatch(ctx, userID(r), result.Transactions)

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":             true,
		"fileName":            result.FileName,
		"transactionCount":    result.TransactionCount,
		"transactions":        result.Transactions,
		"extractedTextLength": result.ExtractedTextLength,
	})
}

// writeProcessingError maps pipeline failures onto HTTP statuses. Password
// problems are client errors carrying a needsPassword hint; an overloaded
// model passes through as 503 so clients know to retry.
func (h *StatementsHandler) writeProcessingError(w http.ResponseWriter, fileName string, err error) {
	h.log.Error().Str("file", fileName).Err(err).Msg("Upload processing failed")

	switch {
	case errors.Is(err, pdfdoc.ErrPasswordRequired):
		middleware.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":         "This PDF is password protected",
			"needsPassword": true,
		})
	case errors.Is(err, pdfdoc.ErrIncorrectPassword):
		middleware.WriteJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error":         "Incorrect password",
			"needsPassword": true,
		})
	case errors.Is(err, pdfdoc.ErrImageOnlyPDF):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case gemini.IsTransient(err.Error()):
		middleware.WriteError(w, http.StatusServiceUnavailable, "The AI service is overloaded, please retry shortly")
	default:
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to process statement")
	}
}

// Count handles POST /api/count: the pre-flight transaction estimate.
// Estimate failures are soft; the client still gets a usable default.
func (h *StatementsHandler) Count(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, data, password, err := readUpload(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "A PDF file is required")
		return
	}

	res, err := h.processor.Count(ctx, pipeline.Request{
		FileName: name,
		Data:     data,
		Password: password,
	})
	if err != nil {
		if errors.Is(err, pdfdoc.ErrPasswordRequired) || errors.Is(err, pdfdoc.ErrIncorrectPassword) {
			middleware.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":         err.Error(),
				"needsPassword": true,
			})
			return
		}
		h.log.Warn().Str("file", name).Err(err).Msg("Count failed, returning default estimate")
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success":          false,
			"error":            err.Error(),
			"count":            0,
			"estimatedSeconds": 60,
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":          res.Success,
		"count":            res.Count,
		"estimatedSeconds": res.EstimatedSeconds,
		"error":            res.Error,
	})
}

// Batch handles POST /api/batch: several statements processed sequentially
// with one shared password, returning per-file outcomes plus the combined
// transaction list.
func (h *StatementsHandler) Batch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "At least one PDF file is required")
		return
	}

	var inputs []uploader.FileInput
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Unreadable file in form")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Unreadable file in form")
			return
		}
		inputs = append(inputs, uploader.FileInput{Name: part.Filename, Data: data})
	}

	password := r.FormValue("password")
	if profileID := r.FormValue("profileId"); profileID != "" && password == "" {
		profile, err := h.profiles.Get(ctx, userID(r), profileID)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Unknown password profile")
			return
		}
		password = profile.Secret
	}

	batch := uploader.New(h.processor, h.log)
	needsPassword, err := batch.Add(inputs)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to queue files")
		return
	}
	if needsPassword {
		if password == "" {
			middleware.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":         "One or more PDFs are password protected",
				"needsPassword": true,
				"files":         batch.Files(),
			})
			return
		}
		if err := batch.SubmitPasswords(uploader.PasswordSubmission{Shared: password}); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to apply password")
			return
		}
	}

	txns, err := batch.Run(ctx)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Batch processing aborted")
		return
	}

	h.saveBatch(ctx, userID(r), txns)

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"files":            batch.Files(),
		"transactions":     txns,
		"transactionCount": len(txns),
		"remainingSeconds": batch.RemainingSeconds(),
	})
}

// saveBatch persists extracted transactions. A primary-store failure is
// logged and the batch lands in the fallback store instead; the upload
// response never fails because persistence did.
func (h *StatementsHandler) saveBatch(ctx context.Context, user string, txns []domain.Transaction) {
	if len(txns) == 0 {
		return
	}
	if err := h.txns.SaveBatch(ctx, user, txns); err != nil {
		h.log.Error().Str("user", user).Err(err).Msg("Saving transactions failed, using fallback store")
		if ferr := h.fallback.SaveBatch(ctx, user, txns); ferr != nil {
			h.log.Error().Str("user", user).Err(ferr).Msg("Fallback store also failed, batch not persisted")
		}
	}
}

// Recategorizer is the bulk re-labeling surface. *gemini.Client satisfies it.
type Recategorizer interface {
	Recategorize(ctx context.Context, txns []domain.Transaction) []domain.Transaction
}

// Recategorize handles POST /api/recategorize: bulk category cleanup over a
// transaction list. Best effort; the input comes back unchanged when the
// model cannot improve it.
func (h *StatementsHandler) Recategorize(ai Recategorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var txns []domain.Transaction
		if err := json.NewDecoder(r.Body).Decode(&txns); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		relabeled := ai.Recategorize(r.Context(), txns)
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success":      true,
			"transactions": relabeled,
		})
	}
}

// TransactionsHandler handles stored transaction endpoints.
type TransactionsHandler struct {
	txns store.TransactionStore
	log  zerolog.Logger
}

func NewTransactionsHandler(txns store.TransactionStore, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{txns: txns, log: log}
}

// List handles GET /api/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	txns, err := h.txns.List(r.Context(), userID(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	// Return array directly for frontend compatibility
	if txns == nil {
		txns = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, txns)
}

// Save handles POST /api/transactions
func (h *TransactionsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var txns []domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&txns); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	for _, txn := range txns {
		if err := txn.Validate(); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.txns.SaveBatch(r.Context(), userID(r), txns); err != nil {
		h.log.Error().Err(err).Msg("Failed to save transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"saved":   len(txns),
	})
}

// DeleteAll handles DELETE /api/transactions
func (h *TransactionsHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.txns.DeleteAll(r.Context(), userID(r)); err != nil {
		h.log.Error().Err(err).Msg("Failed to delete transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ProfilesHandler handles password profile endpoints.
type ProfilesHandler struct {
	profiles store.ProfileStore
	log      zerolog.Logger
}

func NewProfilesHandler(profiles store.ProfileStore, log zerolog.Logger) *ProfilesHandler {
	return &ProfilesHandler{profiles: profiles, log: log}
}

// List handles GET /api/password-profiles. Secrets never serialize.
func (h *ProfilesHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.List(r.Context(), userID(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list password profiles")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list password profiles")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// Create handles POST /api/password-profiles
func (h *ProfilesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name and password are required")
		return
	}

	profile := domain.PasswordProfile{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Secret:    req.Password,
		CreatedAt: time.Now(),
	}
	if err := h.profiles.Save(r.Context(), userID(r), profile); err != nil {
		h.log.Error().Err(err).Msg("Failed to save password profile")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save password profile")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, profile)
}

// Delete handles DELETE /api/password-profiles/{id}
func (h *ProfilesHandler) Delete(w http.ResponseWriter, r *http.Request, profileID string) {
	err := h.profiles.Delete(r.Context(), userID(r), profileID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to delete password profile")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete password profile")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

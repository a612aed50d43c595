package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlens/statement-insights/internal/domain"
	"github.com/finlens/statement-insights/internal/logger"
	"github.com/finlens/statement-insights/internal/pdfdoc"
	"github.com/finlens/statement-insights/internal/pipeline"
	"github.com/finlens/statement-insights/internal/store/memory"
)

type stubProcessor struct {
	processResult *pipeline.Result
	processErr    error
	countResult   domain.CountResult
	countErr      error
	seen          pipeline.Request
}

func (s *stubProcessor) Process(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.seen = req
	if s.processErr != nil {
		return nil, s.processErr
	}
	return s.processResult, nil
}

func (s *stubProcessor) Count(_ context.Context, req pipeline.Request) (domain.CountResult, error) {
	s.seen = req
	if s.countErr != nil {
		return domain.CountResult{}, s.countErr
	}
	return s.countResult, nil
}

func multipartBody(t *testing.T, field, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func newStatementsHandler(p Processor) (*StatementsHandler, *memory.Store) {
	txns := memory.NewStore()
	return NewStatementsHandler(p, txns, memory.NewStore(), memory.NewProfileStore(), logger.NewWithWriter(io.Discard)), txns
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestUpload_Success(t *testing.T) {
	p := &stubProcessor{processResult: &pipeline.Result{
		FileName:            "stmt.pdf",
		Transactions:        []domain.Transaction{{ID: "t1", Amount: 100, Type: domain.Debit}},
		TransactionCount:    1,
		ExtractedTextLength: 2000,
	}}
	h, txns := newStatementsHandler(p)

	buf, contentType := multipartBody(t, "file", "stmt.pdf", []byte("pdfdata"), map[string]string{"password": "pw"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "stmt.pdf", body["fileName"])
	assert.Equal(t, float64(1), body["transactionCount"])
	assert.Equal(t, float64(2000), body["extractedTextLength"])
	assert.Equal(t, "pw", p.seen.Password)

	// Batch landed in the store under the caller's user.
	stored, err := txns.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestUpload_MissingFile(t *testing.T) {
	h, _ := newStatementsHandler(&stubProcessor{})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewBufferString("not multipart"))
	rec := httptest.NewRecorder()

	h.Upload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_ErrorMapping(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantStatus    int
		needsPassword bool
	}{
		{"password required", pdfdoc.ErrPasswordRequired, http.StatusBadRequest, true},
		{"incorrect password", pdfdoc.ErrIncorrectPassword, http.StatusUnauthorized, true},
		{"image only", pdfdoc.ErrImageOnlyPDF, http.StatusBadRequest, false},
		{"model overloaded", errors.New("extraction failed: 503 service unavailable"), http.StatusServiceUnavailable, false},
		{"other", errors.New("disk exploded"), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newStatementsHandler(&stubProcessor{processErr: tt.err})

			buf, contentType := multipartBody(t, "file", "stmt.pdf", []byte("pdf"), nil)
			req := httptest.NewRequest(http.MethodPost, "/api/upload", buf)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			h.Upload(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.needsPassword {
				body := decodeBody(t, rec)
				assert.Equal(t, true, body["needsPassword"])
			}
		})
	}
}

func TestCount_Success(t *testing.T) {
	p := &stubProcessor{countResult: domain.CountResult{Success: true, Count: 40, EstimatedSeconds: 80}}
	h, _ := newStatementsHandler(p)

	buf, contentType := multipartBody(t, "file", "stmt.pdf", []byte("pdf"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/count", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Count(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(40), body["count"])
	assert.Equal(t, float64(80), body["estimatedSeconds"])
}

func TestCount_SoftFailure(t *testing.T) {
	h, _ := newStatementsHandler(&stubProcessor{countErr: errors.New("unreadable")})

	buf, contentType := multipartBody(t, "file", "stmt.pdf", []byte("pdf"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/count", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Count(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, float64(60), body["estimatedSeconds"])
}

func TestCount_PasswordRequired(t *testing.T) {
	h, _ := newStatementsHandler(&stubProcessor{countErr: pdfdoc.ErrPasswordRequired})

	buf, contentType := multipartBody(t, "file", "stmt.pdf", []byte("pdf"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/count", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Count(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["needsPassword"])
}

type stubRecategorizer struct{ category string }

func (s *stubRecategorizer) Recategorize(_ context.Context, txns []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txns))
	copy(out, txns)
	for i := range out {
		out[i].Category = s.category
	}
	return out
}

func TestRecategorize(t *testing.T) {
	h, _ := newStatementsHandler(&stubProcessor{})

	payload := `[{"id":"t1","date":"2025-10-01T00:00:00Z","description":"x","amount":100,"type":"debit","category":"Other"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/recategorize", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()

	h.Recategorize(&stubRecategorizer{category: domain.CategoryFood})(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success      bool                 `json:"success"`
		Transactions []domain.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Transactions, 1)
	assert.Equal(t, domain.CategoryFood, body.Transactions[0].Category)
}

func TestTransactions_CRUD(t *testing.T) {
	txns := memory.NewStore()
	h := NewTransactionsHandler(txns, logger.NewWithWriter(io.Discard))

	// Empty list comes back as an array, not null.
	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	// Save a batch.
	payload := `[{"id":"t1","date":"2025-10-01T00:00:00Z","description":"x","amount":100,"type":"debit","category":"Other"}]`
	req = httptest.NewRequest(http.MethodPost, "/api/transactions", bytes.NewBufferString(payload))
	req.Header.Set("X-User-ID", "alice")
	rec = httptest.NewRecorder()
	h.Save(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Listed for the same user.
	req = httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set("X-User-ID", "alice")
	rec = httptest.NewRecorder()
	h.List(rec, req)
	var listed []domain.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "t1", listed[0].ID)

	// Other users see nothing.
	req = httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set("X-User-ID", "bob")
	rec = httptest.NewRecorder()
	h.List(rec, req)
	assert.Equal(t, "[]\n", rec.Body.String())

	// Delete.
	req = httptest.NewRequest(http.MethodDelete, "/api/transactions", nil)
	req.Header.Set("X-User-ID", "alice")
	rec = httptest.NewRecorder()
	h.DeleteAll(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := txns.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestTransactions_SaveRejectsInvalid(t *testing.T) {
	h := NewTransactionsHandler(memory.NewStore(), logger.NewWithWriter(io.Discard))

	payload := `[{"id":"","date":"2025-10-01T00:00:00Z","amount":100,"type":"debit"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	h.Save(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfiles_CRUD(t *testing.T) {
	h := NewProfilesHandler(memory.NewProfileStore(), logger.NewWithWriter(io.Discard))

	req := httptest.NewRequest(http.MethodPost, "/api/password-profiles",
		bytes.NewBufferString(`{"name":"Salary account","password":"hunter2"}`))
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeBody(t, rec)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	// The secret never serializes.
	assert.NotContains(t, rec.Body.String(), "hunter2")

	req = httptest.NewRequest(http.MethodGet, "/api/password-profiles", nil)
	req.Header.Set("X-User-ID", "alice")
	rec = httptest.NewRecorder()
	h.List(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
	assert.NotContains(t, rec.Body.String(), "hunter2")

	req = httptest.NewRequest(http.MethodDelete, "/api/password-profiles/"+id, nil)
	req.Header.Set("X-User-ID", "alice")
	rec = httptest.NewRecorder()
	h.Delete(rec, req, id)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Delete(rec, req, id)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfiles_CreateValidation(t *testing.T) {
	h := NewProfilesHandler(memory.NewProfileStore(), logger.NewWithWriter(io.Discard))

	req := httptest.NewRequest(http.MethodPost, "/api/password-profiles",
		bytes.NewBufferString(`{"name":"no password"}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

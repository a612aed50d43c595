package pdfdoc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Decryptor removes password protection from PDFs by shelling out to qpdf.
// Input and output travel through uniquely named temp files that are removed
// on every exit path.
type Decryptor struct {
	// QPDFPath is the qpdf binary to invoke. Defaults to "qpdf" on PATH.
	QPDFPath string
	// TempDir is where working files are written. Defaults to os.TempDir().
	TempDir string
}

// NewDecryptor returns a Decryptor with the given tool path and temp dir,
// falling back to defaults for empty values.
func NewDecryptor(qpdfPath, tempDir string) *Decryptor {
	if qpdfPath == "" {
		qpdfPath = "qpdf"
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Decryptor{QPDFPath: qpdfPath, TempDir: tempDir}
}

// Decrypt returns a decrypted copy of data. With an empty password it checks
// whether the document is encrypted at all: unencrypted input passes through
// untouched, encrypted input fails with ErrPasswordRequired. A non-zero qpdf
// exit mentioning an invalid password maps to ErrIncorrectPassword.
func (d *Decryptor) Decrypt(ctx context.Context, data []byte, password string) ([]byte, error) {
	if password == "" {
		if IsEncrypted(data) {
			return nil, ErrPasswordRequired
		}
		return data, nil
	}

	if err := os.MkdirAll(d.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("decrypt: create temp dir: %w", err)
	}

	// Unique per request so concurrent callers can never collide.
	token := uuid.NewString()
	inPath := filepath.Join(d.TempDir, "original-"+token+".pdf")
	outPath := filepath.Join(d.TempDir, "decrypted-"+token+".pdf")
	defer func() {
		_ = os.Remove(inPath)
		_ = os.Remove(outPath)
	}()

	if err := os.WriteFile(inPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("decrypt: write temp file: %w", err)
	}

	cmd := exec.CommandContext(ctx, d.QPDFPath, "--password="+password, "--decrypt", inPath, outPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if isPasswordFailure(stderr.String()) {
			return nil, ErrIncorrectPassword
		}
		return nil, fmt.Errorf("decrypt: qpdf failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	decrypted, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("decrypt: read output: %w", err)
	}
	return decrypted, nil
}

func isPasswordFailure(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "invalid password") || strings.Contains(s, "password")
}

// IsEncrypted reports whether the PDF refuses to open without a password.
func IsEncrypted(data []byte) bool {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	_, err := api.ReadContext(bytes.NewReader(data), cfg)
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "password") || strings.Contains(s, "encrypt")
}

// Package pdfdoc turns uploaded statement PDFs into plain text: optional
// qpdf-based decryption followed by text extraction.
package pdfdoc

import "errors"

var (
	// ErrPasswordRequired means the source PDF is encrypted and no password
	// was supplied. Distinguishable so the caller can prompt instead of
	// feeding garbage downstream.
	ErrPasswordRequired = errors.New("pdf is password protected")

	// ErrIncorrectPassword means decryption was attempted with a wrong
	// password. Never retried: a wrong password is not transient.
	ErrIncorrectPassword = errors.New("failed to decrypt pdf: incorrect password")

	// ErrImageOnlyPDF means extraction produced no usable text, which almost
	// always indicates a scanned/image-based statement.
	ErrImageOnlyPDF = errors.New("could not extract text: pdf appears to be image-based")
)

package pdfdoc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MinTextLength is the smallest extraction result we accept. Anything shorter
// is classified as an image-based PDF rather than passed to the AI stage.
const MinTextLength = 100

// ExtractText pulls plain text out of PDF bytes, page by page. A result
// below MinTextLength fails with ErrImageOnlyPDF.
func ExtractText(data []byte) (text string, err error) {
	// The pdf library panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract text: pdf reader crashed: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("extract text: open pdf: %w", err)
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return "", fmt.Errorf("extract text: pdf has no pages")
	}

	var b strings.Builder
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if line != "" {
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
	}

	result := b.String()
	if len(strings.TrimSpace(result)) < MinTextLength {
		return "", ErrImageOnlyPDF
	}
	return result, nil
}

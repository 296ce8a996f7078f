package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/healthtech/filemanager/internal/domain"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// Processor defines the operations for reading exam documents
type Processor interface {
	// ExtractText returns the plain text of a PDF document.
	// Unreadable documents yield domain.ErrInvalidPDF.
	ExtractText(ctx context.Context, data []byte) (string, error)

	// ParseBloodPanel finds hemogram values in extracted text
	ParseBloodPanel(text string) domain.BloodPanel
}

// Values are taken from the first number that follows each label
var (
	hemoglobinPattern   = regexp.MustCompile(`Hemoglobina[^0-9]*([\d,.]+)`)
	hematocritPattern   = regexp.MustCompile(`Hematócrito[^0-9]*([\d,.]+)`)
	erythrocytesPattern = regexp.MustCompile(`Eritrócitos[^0-9]*([\d,.]+)`)
)

// PDFProcessor implements Processor using github.com/ledongthuc/pdf
type PDFProcessor struct {
	logger *zap.SugaredLogger
}

// New creates a new PDFProcessor
func New(logger *zap.SugaredLogger) *PDFProcessor {
	return &PDFProcessor{
		logger: logger,
	}
}

// ExtractText reads the text content of every page in order
func (p *PDFProcessor) ExtractText(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty document", domain.ErrInvalidPDF)
	}

	// The parser panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", domain.ErrInvalidPDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPDF, err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPDF, err)
	}

	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPDF, err)
	}

	p.logger.Debugw("Extracted PDF text",
		"pages", reader.NumPage(),
		"dataSize", len(data),
		"textLength", buf.Len(),
	)

	return buf.String(), nil
}

// ParseBloodPanel extracts hemoglobin, hematocrit and erythrocyte values
func (p *PDFProcessor) ParseBloodPanel(text string) domain.BloodPanel {
	return ParseBloodPanel(text)
}

// ParseBloodPanel extracts hemogram values from text. Missing values stay empty.
func ParseBloodPanel(text string) domain.BloodPanel {
	return domain.BloodPanel{
		Hemoglobin:   firstMatch(hemoglobinPattern, text),
		Hematocrit:   firstMatch(hematocritPattern, text),
		Erythrocytes: firstMatch(erythrocytesPattern, text),
	}
}

func firstMatch(pattern *regexp.Regexp, text string) string {
	m := pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

package domain

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

const (
	// DefaultMaxFileSizeMB is the upload size limit when no policy file is configured
	DefaultMaxFileSizeMB = 200

	// ContentTypePDF is the only content type accepted by the default policy
	ContentTypePDF = "application/pdf"
)

// UploadPolicy describes which files may be uploaded
type UploadPolicy struct {
	MaxFileSizeMB int      `yaml:"max_file_size_mb" json:"maxFileSizeMb"`
	AllowedTypes  []string `yaml:"allowed_types" json:"allowedTypes"`
}

// DefaultUploadPolicy returns the built-in policy: PDF files up to 200MB
func DefaultUploadPolicy() *UploadPolicy {
	return &UploadPolicy{
		MaxFileSizeMB: DefaultMaxFileSizeMB,
		AllowedTypes:  []string{ContentTypePDF},
	}
}

// MaxFileSize returns the limit in bytes
func (p *UploadPolicy) MaxFileSize() int64 {
	return int64(p.MaxFileSizeMB) * 1024 * 1024
}

// MaxFileSizeLabel returns the limit as shown to users, e.g. "200MB"
func (p *UploadPolicy) MaxFileSizeLabel() string {
	return fmt.Sprintf("%dMB", p.MaxFileSizeMB)
}

// Allows reports whether the MIME type guessed from the file name is accepted
func (p *UploadPolicy) Allows(filename string) bool {
	contentType := GuessContentType(filename)
	if contentType == "" {
		return false
	}
	for _, allowed := range p.AllowedTypes {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

// RejectionMessage returns the message reported for a file the policy does not allow.
// A PDF-only policy keeps the historical wording.
func (p *UploadPolicy) RejectionMessage(filename string) string {
	if p.pdfOnly() {
		return fmt.Sprintf("The file '%s' is not a PDF, only PDF files are allowed", filename)
	}
	return fmt.Sprintf("The file '%s' has an unsupported type, allowed types are: %s",
		filename, strings.Join(p.AllowedTypes, ", "))
}

func (p *UploadPolicy) pdfOnly() bool {
	for _, allowed := range p.AllowedTypes {
		if !strings.EqualFold(allowed, ContentTypePDF) {
			return false
		}
	}
	return len(p.AllowedTypes) > 0
}

// GuessContentType returns the MIME type for a file name's extension without parameters,
// or an empty string when the extension is unknown
func GuessContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ""
	}
	contentType := mime.TypeByExtension(ext)
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}

package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// FileType represents the format of an ingested document
type FileType string

const (
	FileTypePDF FileType = "pdf"
)

// Document represents an ingested source file. Documents are immutable once created.
type Document struct {
	ID          string
	Filename    string
	FileType    FileType
	ContentType string
	CreatedAt   time.Time
}

// NewDocument creates a new Document instance
func NewDocument(id, filename string, fileType FileType, contentType string, createdAt time.Time) *Document {
	return &Document{
		ID:          id,
		Filename:    filename,
		FileType:    fileType,
		ContentType: contentType,
		CreatedAt:   createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}

	if !IsSupportedFileType(d.FileType) {
		return fmt.Errorf("document FileType is invalid: %s", d.FileType)
	}

	return nil
}

// ArchiveKey returns the object storage key for the document's original bytes.
func (d *Document) ArchiveKey() string {
	return fmt.Sprintf("documents/%s.%s", d.ID, d.FileType)
}

// IsSupportedFileType reports whether the file type can be ingested.
func IsSupportedFileType(t FileType) bool {
	return t == FileTypePDF
}

// DetectFileType derives the file type from the declared content type or,
// failing that, the filename extension.
func DetectFileType(contentType, filename string) (FileType, error) {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return FileTypePDF, nil
	}
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return FileTypePDF, nil
	}
	return "", NewDomainErrorWithCause(ErrCodeValidation, "unsupported file format",
		fmt.Errorf("only PDF files are supported, got %q", contentType))
}

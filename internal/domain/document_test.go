package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	now := time.Now()
	doc := NewDocument("d1", "report.pdf", FileTypePDF, "application/pdf", now)

	assert.Equal(t, "d1", doc.ID)
	assert.Equal(t, "report.pdf", doc.Filename)
	assert.Equal(t, FileTypePDF, doc.FileType)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, now, doc.CreatedAt)
	assert.Equal(t, "documents/d1.pdf", doc.ArchiveKey())
}

func TestValidateDocument(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		doc     *Document
		wantErr string
	}{
		{"valid", NewDocument("d1", "a.pdf", FileTypePDF, "application/pdf", now), ""},
		{"nil", nil, "document cannot be nil"},
		{"missing id", NewDocument("", "a.pdf", FileTypePDF, "", now), "document ID is required"},
		{"missing filename", NewDocument("d1", "", FileTypePDF, "", now), "document Filename is required"},
		{"bad type", NewDocument("d1", "a.txt", FileType("txt"), "", now), "document FileType is invalid: txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		filename    string
		wantErr     bool
	}{
		{"pdf content type", "application/pdf", "upload", false},
		{"pdf content type mixed case", "Application/PDF", "upload.bin", false},
		{"pdf extension only", "application/octet-stream", "Report.PDF", false},
		{"text file", "text/plain", "notes.txt", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft, err := DetectFileType(tt.contentType, tt.filename)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsupportedFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, FileTypePDF, ft)
		})
	}
}

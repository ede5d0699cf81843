// Package export renders a user's task list as a downloadable report in
// PDF or DOCX format.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation
type Request struct {
	UserID      string
	Format      Format
	FilterTopic string // empty = all topics
}

// ReportTask is one task row in the rendered report.
type ReportTask struct {
	Title     string
	Completed bool
	CreatedAt time.Time
}

// ReportGroup is one topic section of the report.
type ReportGroup struct {
	Topic string
	Tasks []ReportTask
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)

package output

import (
	"context"
	"fmt"
	"time"
)

// CapturePath builds the suggested relative path for the session document:
// "ACC-YYYY-MM-DD/HH-MM-SS_capture.txt", both parts from the session start.
func CapturePath(start time.Time) string {
	return fmt.Sprintf("ACC-%s/%s_capture.txt",
		start.Format("2006-01-02"), start.Format("15-04-05"))
}

// ImagePath builds the relative path for an image save inside the session's
// output folder: "ACC-YYYY-MM-DD/img-HH-MM-SS.<ext>" with jpeg normalized
// to jpg.
func ImagePath(start, saved time.Time, ext string) string {
	if ext == "jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("ACC-%s/img-%s.%s",
		start.Format("2006-01-02"), saved.Format("15-04-05"), ext)
}

// ConflictPolicy says what a deliverer does when the destination exists.
type ConflictPolicy int

const (
	// ConflictAutoRename inserts " (n)" before the extension, the way
	// browser downloads uniquify. The zero value.
	ConflictAutoRename ConflictPolicy = iota
	// ConflictOverwrite replaces the existing file.
	ConflictOverwrite
)

// SaveRequest asks the file-delivery collaborator to write one file. Exactly
// one of Content or SourceURL is set: Content carries inline document bytes,
// SourceURL names a remote resource to fetch (image saves).
type SaveRequest struct {
	Content        []byte
	SourceURL      string
	Path           string         // relative path under the delivery root
	ConflictPolicy ConflictPolicy // defaults to auto-rename
	PromptUser     bool           // ask the user for a location (main capture only)
}

// Deliverer performs the actual write; the capture core never touches a
// filesystem directly. Delivery is at-most-once and best-effort: failures
// are logged by the implementation and never retried.
type Deliverer interface {
	Deliver(ctx context.Context, req SaveRequest) error
}

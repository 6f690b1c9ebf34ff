// Package output turns a finished session into one formatted text document
// and defines the file-delivery collaborator contract.
package output

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gosuda/pagecap/internal/domain"
)

const headerRule = "========================================"

// Serialize renders the final entry list as one document: a fixed-width
// header block followed by each entry as a one-line tag, the entry's text
// written verbatim (no escaping), and a blank line separator.
func Serialize(start, end time.Time, entries []domain.CaptureEntry) []byte {
	var b strings.Builder

	var size int64
	for _, e := range entries {
		size += domain.EntryCost(e.Text)
	}

	b.WriteString(headerRule + "\n")
	b.WriteString(" Page Capture Session\n")
	fmt.Fprintf(&b, " Start:    %s\n", start.Format(time.RFC3339))
	fmt.Fprintf(&b, " End:      %s\n", end.Format(time.RFC3339))
	fmt.Fprintf(&b, " Duration: %ds\n", int(end.Sub(start).Seconds()))
	fmt.Fprintf(&b, " Entries:  %d\n", len(entries))
	fmt.Fprintf(&b, " Size:     %.1f KB\n", float64(size)/1024)
	b.WriteString(headerRule + "\n\n")

	for i, e := range entries {
		offset := int(math.Round(e.Timestamp.Sub(start).Seconds()))
		fmt.Fprintf(&b, "[%03d] +%ds | %s | %s\n", i+1, offset, e.FrameID, e.URL)
		b.WriteString(e.Text)
		b.WriteString("\n\n")
	}

	return []byte(b.String())
}

package domain

import (
	"fmt"
	"time"
)

// EntrySource says why extraction fired for an entry.
type EntrySource string

const (
	// SourceInitial marks text present when watching began.
	SourceInitial EntrySource = "initial"
	// SourceAdded marks text extracted from a newly inserted subtree.
	SourceAdded EntrySource = "added"
	// SourceTextNode marks a bare text node inserted into the page.
	SourceTextNode EntrySource = "text-node"
	// SourceModified marks an existing text node whose content changed.
	SourceModified EntrySource = "modified"
)

// CaptureEntry is one unit of captured page text.
type CaptureEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Source    EntrySource `json:"source"`
	FrameID   string      `json:"frame_id"` // "main" or a name derived from the frame's resource path
	URL       string      `json:"url"`
	Text      string      `json:"text"`
}

// FingerprintPrefixLen is how many leading characters of cleaned text
// participate in the dedup key.
const FingerprintPrefixLen = 100

// Fingerprint derives the dedup key for a cleaned text: its first 100
// characters plus its total character length. Two long texts sharing both
// collide and one is dropped; that false-negative rate is an accepted
// speed/precision trade-off.
func Fingerprint(text string) string {
	runes := []rune(text)
	prefix := runes
	if len(runes) > FingerprintPrefixLen {
		prefix = runes[:FingerprintPrefixLen]
	}
	return fmt.Sprintf("%s:%d", string(prefix), len(runes))
}

// EntryCost approximates the storage cost of a text in bytes, modeling a
// worst-case 2-bytes-per-character encoding.
func EntryCost(text string) int64 {
	return 2 * int64(len([]rune(text)))
}

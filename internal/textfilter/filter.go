// Package textfilter decides whether a candidate string is meaningful prose
// or noise (CSS, script fragments, boilerplate). The noise list is literal
// pattern matching, not a parser; false negatives are acceptable — the goal
// is "mostly prose".
package textfilter

import (
	"regexp"
	"strings"
)

const (
	// DefaultMinLength is the minimum cleaned length below which text is rejected.
	DefaultMinLength = 10
	// DefaultMaxLength is the length above which kept text is truncated.
	DefaultMaxLength = 100_000
	// TruncationMarker is appended to text cut at the maximum length.
	TruncationMarker = "... [truncated]"
	// DefaultIndicatorLabel is the on-page recording indicator's own label;
	// the filter must never capture the extension's own UI text.
	DefaultIndicatorLabel = "● Recording"
)

var (
	wsRun     = regexp.MustCompile(`\s+`)
	invisible = regexp.MustCompile("[\u200B\u200C\u200D\u200E\u200F\uFEFF\u00AD]")

	// Noise signatures. Order matters only for readability; any match rejects.
	pureNumeric   = regexp.MustCompile(`^[\d\s.,:%+/-]+$`)
	timerLike     = regexp.MustCompile(`^\d{1,3}:\d{2}(:\d{2})?$`)
	cssRuleShape  = regexp.MustCompile(`(?s)[.#@\w][\w.#\s,>:~^$*\[\]="'-]*\{[^{}]*\}`)
	cssAtBlock    = regexp.MustCompile(`@(keyframes|media|font-face|supports)\b`)
	vendorPrefix  = regexp.MustCompile(`-(webkit|moz|ms|o)-[a-z-]+`)
	inlineDecl    = regexp.MustCompile(`\b(animation|transform|transition|flex|grid-template)\s*:\s*[^;]+;?`)
	dataURI       = regexp.MustCompile(`data:[\w.+-]+/[\w.+-]+;base64,`)
	fontFeature   = regexp.MustCompile(`\bfont-(feature|variation)-settings\b`)
	structuralPct = 0.10
)

// Filter classifies candidate text. The zero value is not usable; construct
// with New.
type Filter struct {
	minLength      int
	maxLength      int
	indicatorLabel string
}

// Option configures a Filter.
type Option func(*Filter)

// WithLengthBounds overrides the minimum and maximum text lengths.
func WithLengthBounds(minLen, maxLen int) Option {
	return func(f *Filter) {
		f.minLength = minLen
		f.maxLength = maxLen
	}
}

// WithIndicatorLabel overrides the recording-indicator label to reject.
func WithIndicatorLabel(label string) Option {
	return func(f *Filter) {
		f.indicatorLabel = label
	}
}

// New creates a Filter with the default thresholds.
func New(opts ...Option) *Filter {
	f := &Filter{
		minLength:      DefaultMinLength,
		maxLength:      DefaultMaxLength,
		indicatorLabel: DefaultIndicatorLabel,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Check normalizes raw text and reports whether it should be kept. The
// returned string is the cleaned (and possibly truncated) form; it is only
// meaningful when keep is true. Check is pure: dedup against previously seen
// text is the caller's concern (see SeenSet).
func (f *Filter) Check(raw string) (cleaned string, keep bool) {
	cleaned = Normalize(raw)

	runes := []rune(cleaned)
	if len(runes) < f.minLength {
		return "", false
	}

	// Over-long text is truncated, never rejected.
	if len(runes) > f.maxLength {
		cleaned = string(runes[:f.maxLength]) + TruncationMarker
	}

	if f.isNoise(cleaned) {
		return "", false
	}

	if structuralRatio(cleaned) > structuralPct {
		return "", false
	}

	return cleaned, true
}

// Normalize collapses whitespace runs to single spaces, strips zero-width
// and invisible marks, and trims the ends.
func Normalize(raw string) string {
	s := invisible.ReplaceAllString(raw, "")
	s = wsRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func (f *Filter) isNoise(s string) bool {
	if f.indicatorLabel != "" && strings.Contains(s, f.indicatorLabel) {
		return true
	}
	switch {
	case pureNumeric.MatchString(s),
		timerLike.MatchString(s),
		cssAtBlock.MatchString(s),
		cssRuleShape.MatchString(s),
		vendorPrefix.MatchString(s),
		inlineDecl.MatchString(s),
		dataURI.MatchString(s),
		fontFeature.MatchString(s):
		return true
	}
	return false
}

// structuralRatio is the share of structural punctuation ({ } ; :) in the
// text — a cheap heuristic for "this is markup or code, not prose".
func structuralRatio(s string) float64 {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	var n int
	for _, r := range runes {
		switch r {
		case '{', '}', ';', ':':
			n++
		}
	}
	return float64(n) / float64(len(runes))
}

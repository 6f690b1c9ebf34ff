// Package delivery implements the file-delivery collaborator on the local
// filesystem.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/pagecap/internal/output"
)

// maxFetchBytes bounds the size of a fetched image save.
const maxFetchBytes = 64 << 20

// ErrUnsafePath is returned when a save request's path escapes the root.
var ErrUnsafePath = errors.New("delivery: path escapes delivery root")

// Filesystem writes save requests under a root directory, auto-renaming on
// filename collision. It cannot prompt the user for a location; requests
// with PromptUser set are written to the suggested path like any other.
type Filesystem struct {
	root   string
	client *http.Client
}

// New creates a Filesystem deliverer rooted at dir.
func New(dir string) *Filesystem {
	return &Filesystem{
		root:   dir,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Deliver writes one file. Inline content is written directly; requests
// carrying a SourceURL are fetched first. Errors are returned for the
// caller to log; delivery is never retried.
func (f *Filesystem) Deliver(ctx context.Context, req output.SaveRequest) error {
	dest := filepath.Join(f.root, filepath.FromSlash(req.Path))
	rel, err := filepath.Rel(f.root, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("delivery.Filesystem.Deliver: %q: %w", req.Path, ErrUnsafePath)
	}

	data := req.Content
	if req.SourceURL != "" {
		data, err = f.fetch(ctx, req.SourceURL)
		if err != nil {
			return fmt.Errorf("delivery.Filesystem.Deliver: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("delivery.Filesystem.Deliver: %w", err)
	}

	if req.ConflictPolicy == output.ConflictAutoRename {
		dest, err = resolveCollision(dest)
		if err != nil {
			return fmt.Errorf("delivery.Filesystem.Deliver: %w", err)
		}
	}

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("delivery.Filesystem.Deliver: %w", err)
	}

	log.Info().Str("path", dest).Int("bytes", len(data)).Msg("file delivered")
	return nil
}

func (f *Filesystem) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return data, nil
}

// resolveCollision returns the first non-existing variant of dest, inserting
// " (n)" before the extension: capture.txt, capture (1).txt, capture (2).txt.
func resolveCollision(dest string) (string, error) {
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest, nil
	}

	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(dest, ext)
	for i := 1; i <= 1000; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free filename for %s", dest)
}

package report

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// EnsureFont downloads the font at url to path unless path already exists.
func EnsureFont(ctx context.Context, client *http.Client, path, url string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if url == "" {
		return fmt.Errorf("font %s not found and no download url configured", path)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading font: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("font download returned status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating font directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".font-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("writing font: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing font file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

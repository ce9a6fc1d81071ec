package actions

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// fetch issues (or reuses a deduped, in-flight, or cached) GET for rawURL,
// logging STARTED/SUCCESS/FAILURE the way the teacher's webhook handler
// logs outbound calls.
func (m *Manager) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	do := func(ctx context.Context) ([]byte, error) {
		if m.Limiter != nil {
			if err := m.Limiter.Wait(ctx); err != nil {
				return nil, &ExternalFailureError{Op: "fetch " + rawURL, Err: err}
			}
		}

		m.Logger.Info("fetch STARTED", "url", rawURL)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			m.Logger.Error("fetch FAILURE", "url", rawURL, "error", err)
			return nil, &ExternalFailureError{Op: "fetch " + rawURL, Err: err}
		}
		resp, err := m.HTTP.Do(req)
		if err != nil {
			m.Logger.Error("fetch FAILURE", "url", rawURL, "error", err)
			return nil, &ExternalFailureError{Op: "fetch " + rawURL, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			err := fmt.Errorf("unexpected status %d", resp.StatusCode)
			m.Logger.Error("fetch FAILURE", "url", rawURL, "error", err)
			return nil, &ExternalFailureError{Op: "fetch " + rawURL, Err: err}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			m.Logger.Error("fetch FAILURE", "url", rawURL, "error", err)
			return nil, &ExternalFailureError{Op: "fetch " + rawURL, Err: err}
		}

		m.Logger.Info("fetch SUCCESS", "url", rawURL, "bytes", len(body))
		return body, nil
	}

	if m.Cache != nil {
		return m.Cache.GetOrFetch(ctx, rawURL, do)
	}
	return do(ctx)
}

// downloadToFile fetches rawURL and writes it to
// <DownloadsDir>/<basename(namePattern)>, substituting "{time}" in the
// pattern for the current unix time. The resolved name is always reduced
// to its basename before being joined to DownloadsDir, so a malicious
// download_name cannot escape the downloads directory.
func (m *Manager) downloadToFile(ctx context.Context, rawURL, namePattern string) error {
	body, err := m.fetch(ctx, rawURL)
	if err != nil {
		return err
	}

	name := strings.ReplaceAll(namePattern, "{time}", strconv.FormatInt(m.now().Unix(), 10))
	name = filepath.Base(name)

	if err := os.MkdirAll(m.DownloadsDir, 0o755); err != nil {
		return &ExternalFailureError{Op: "download " + rawURL, Err: err}
	}
	dest := filepath.Join(m.DownloadsDir, name)
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return &ExternalFailureError{Op: "download " + rawURL, Err: err}
	}
	return nil
}

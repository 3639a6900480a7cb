// Package api talks to the telemetry server's HTTP interface.
package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tiltpilot/navsim/pkg/core"
)

// UploadPath receives run exports.
const UploadPath = "/api/v1/runs"

// Client handles communication with the telemetry server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// UploadMetadata describes an uploaded run export.
type UploadMetadata struct {
	RunUUID  string
	Name     string
	Outcome  core.RunOutcome
	Hits     int
	Ticks    uint
	Duration time.Duration
}

// MetadataFor builds the upload fields for a finished run.
func MetadataFor(run *core.Run, summary core.RunSummary) UploadMetadata {
	return UploadMetadata{
		RunUUID:  summary.RunUUID,
		Name:     run.Name,
		Outcome:  summary.Outcome,
		Hits:     summary.HitsCount,
		Ticks:    summary.Ticks,
		Duration: summary.EndTime.Sub(run.StartTime),
	}
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Upload streams a run export to the server as a multipart form.
func (c *Client) Upload(ctx context.Context, filePath string, meta UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		_ = writer.WriteField("secret", c.apiKey)
		_ = writer.WriteField("filename", filepath.Base(filePath))
		_ = writer.WriteField("run", meta.RunUUID)
		_ = writer.WriteField("name", meta.Name)
		_ = writer.WriteField("outcome", string(meta.Outcome))
		_ = writer.WriteField("hits", strconv.Itoa(meta.Hits))
		_ = writer.WriteField("ticks", strconv.FormatUint(uint64(meta.Ticks), 10))
		_ = writer.WriteField("duration", fmt.Sprintf("%f", meta.Duration.Seconds()))

		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			errCh <- fmt.Errorf("failed to create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			errCh <- fmt.Errorf("failed to copy file: %w", err)
			return
		}
		errCh <- nil
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+UploadPath, pr)
	if err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	// Unblocks the writer when the server answered without reading the body.
	pr.Close()
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	if writeErr := <-errCh; writeErr != nil {
		return writeErr
	}
	return nil
}

package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/spf13/afero"
)

// WriteCounter tracks the total number of bytes written and prints download progress.
type WriteCounter struct {
	Total       uint64
	DownloadURL string
	// Out receives the progress line; nil means os.Stderr.
	Out io.Writer
}

// Write implements the io.Writer interface and updates the total byte count.
func (wc *WriteCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.Total += uint64(n)
	wc.PrintProgress()
	return n, nil
}

// PrintProgress displays the download progress in the terminal.
func (wc WriteCounter) PrintProgress() {
	out := wc.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, "\r%s", strings.Repeat(" ", 50)) // Clear the line
	fmt.Fprintf(out, "\rDownloading %s - %s complete ", wc.DownloadURL, humanize.Bytes(wc.Total))
}

// Client fetches files over HTTP into an afero filesystem.
type Client struct {
	HTTP     *http.Client
	Progress io.Writer
	Logger   *logging.Logger
}

// NewClient returns a client using http.DefaultClient and stderr progress.
func NewClient(logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Client{HTTP: http.DefaultClient, Progress: os.Stderr, Logger: logger}
}

// DownloadFile downloads url to filePath. The body is streamed into
// filePath+".tmp" and renamed once complete, so filePath never holds a
// partial download. An existing filePath is left alone.
func (c *Client) DownloadFile(ctx context.Context, fs afero.Fs, url, filePath string) error {
	if exists, err := afero.Exists(fs, filePath); err == nil && exists {
		c.Logger.Debug("file already present, skipping download", "path", filePath)
		return nil
	}

	if err := fs.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpFilePath := filePath + ".tmp"
	out, err := fs.Create(tmpFilePath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	committed := false
	defer func() {
		out.Close()
		if !committed {
			_ = fs.Remove(tmpFilePath)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download file: status code %d", resp.StatusCode)
	}

	counter := &WriteCounter{DownloadURL: url, Out: c.Progress}
	if _, err = io.Copy(out, io.TeeReader(resp.Body, counter)); err != nil {
		return fmt.Errorf("failed to copy data: %w", err)
	}
	fmt.Fprintln(counter.writer())

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err = fs.Rename(tmpFilePath, filePath); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	committed = true

	c.Logger.Info("downloaded", "url", url, "path", filePath, "size", humanize.Bytes(counter.Total))
	return nil
}

func (wc *WriteCounter) writer() io.Writer {
	if wc.Out == nil {
		return os.Stderr
	}
	return wc.Out
}

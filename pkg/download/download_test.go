package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(progress *bytes.Buffer) *Client {
	return &Client{HTTP: http.DefaultClient, Progress: progress, Logger: logging.NewTestLogger()}
}

func TestWriteCounter_Write(t *testing.T) {
	counter := &WriteCounter{Out: &bytes.Buffer{}}
	data := []byte("Hello, World!")
	n, err := counter.Write(data)

	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, uint64(len(data)), counter.Total)
}

func TestWriteCounter_PrintProgress(t *testing.T) {
	var buf bytes.Buffer
	counter := WriteCounter{DownloadURL: "example.com/ggml-medium.bin", Total: 1024, Out: &buf}
	counter.PrintProgress()

	expected := "\r                                                  \rDownloading example.com/ggml-medium.bin - 1.0 kB complete "
	assert.Equal(t, expected, buf.String())
}

func TestDownloadFile(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("model-bytes"))
		}))
		defer srv.Close()

		fs := afero.NewMemMapFs()
		var progress bytes.Buffer
		err := newTestClient(&progress).DownloadFile(ctx, fs, srv.URL, "/models/ggml-tiny.bin")
		require.NoError(t, err)

		data, err := afero.ReadFile(fs, "/models/ggml-tiny.bin")
		require.NoError(t, err)
		assert.Equal(t, "model-bytes", string(data))
		assert.Contains(t, progress.String(), "complete")

		exists, _ := afero.Exists(fs, "/models/ggml-tiny.bin.tmp")
		assert.False(t, exists)
	})

	t.Run("BadStatus", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		fs := afero.NewMemMapFs()
		err := newTestClient(&bytes.Buffer{}).DownloadFile(ctx, fs, srv.URL, "/models/missing.bin")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status code 404")

		for _, p := range []string{"/models/missing.bin", "/models/missing.bin.tmp"} {
			exists, _ := afero.Exists(fs, p)
			assert.False(t, exists, p)
		}
	})

	t.Run("SkipsExisting", func(t *testing.T) {
		hits := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits++
			_, _ = w.Write([]byte("new"))
		}))
		defer srv.Close()

		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/models/ggml-base.bin", []byte("old"), 0o644))

		require.NoError(t, newTestClient(&bytes.Buffer{}).DownloadFile(ctx, fs, srv.URL, "/models/ggml-base.bin"))
		assert.Equal(t, 0, hits)

		data, _ := afero.ReadFile(fs, "/models/ggml-base.bin")
		assert.Equal(t, "old", string(data))
	})
}

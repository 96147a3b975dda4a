package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/notescribe/notescribe/pkg/asr"
	"github.com/notescribe/notescribe/pkg/audio"
	"github.com/notescribe/notescribe/pkg/document"
	"github.com/notescribe/notescribe/pkg/environment"
	perrors "github.com/notescribe/notescribe/pkg/errors"
	"github.com/notescribe/notescribe/pkg/history"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/notescribe/notescribe/pkg/metrics"
	"github.com/notescribe/notescribe/pkg/pipeline"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()
	enc := wav.NewEncoder(f, audio.TargetSampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: audio.TargetSampleRate},
		Data:           make([]int, 800),
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

type cannedModel struct{ text string }

func (m cannedModel) Infer(context.Context, string, string, asr.DecodeOptions) (string, error) {
	return m.text, nil
}

func (m cannedModel) Close() error { return nil }

type cannedBackend struct {
	text    string
	loadErr error
}

func (b cannedBackend) Name() string { return "canned" }

func (b cannedBackend) Accepts(f audio.Format) bool { return f == audio.FormatWAV }

func (b cannedBackend) Load(context.Context, string) (asr.Model, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return cannedModel{text: b.text}, nil
}

type noDecoder struct{}

func (noDecoder) Decode(context.Context, audio.Source, string) error {
	return errors.New("ffmpeg: Invalid data found when processing input")
}

// stubPipeline swaps the production wiring for in-memory components.
func stubPipeline(t *testing.T, backend asr.Backend) *transcribeOptions {
	t.Helper()
	var got transcribeOptions
	orig := BuildPipelineFn
	BuildPipelineFn = func(_ context.Context, fs afero.Fs, _ *environment.Environment, opts transcribeOptions, logger *logging.Logger) (*PipelineHandle, error) {
		got = opts
		engine := asr.NewEngine(backend, opts.Model, logger)
		norm := audio.NewNormalizer(fs, noDecoder{}, engine.Accepts, logger)
		orch := pipeline.New(norm, engine, document.NewAssembler(fs, logger), logger)
		m := metrics.New()
		orch.Metrics = m
		h := &PipelineHandle{Orchestrator: orch, Metrics: m}
		h.AddCloser(engine.Close)
		return h, nil
	}
	t.Cleanup(func() { BuildPipelineFn = orig })
	return &got
}

func testEnv(t *testing.T, fs afero.Fs) *environment.Environment {
	t.Helper()
	env, err := environment.NewEnvironment(fs, &environment.Environment{
		ModelDir:  "/models",
		HistoryDB: history.MemoryPath,
	})
	require.NoError(t, err)
	return env
}

func execute(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	root := NewRootCommand(context.Background(), fs, testEnv(t, fs), logging.NewTestLogger())
	require.NotNil(t, root)
	assert.Equal(t, "notescribe", root.Use)
	assert.Equal(t, "dev", root.Version)

	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Use)
	}
	assert.Equal(t, []string{"transcribe [audio] [output]", "models", "history"}, names)

	tr, _, err := root.Find([]string{"transcribe"})
	require.NoError(t, err)
	for _, flag := range []string{"language", "engine", "model", "metrics-textfile", "no-history"} {
		assert.NotNil(t, tr.Flags().Lookup(flag), flag)
	}
	assert.Equal(t, "fr", tr.Flags().Lookup("language").DefValue)
	assert.Equal(t, "whisper-cpp", tr.Flags().Lookup("engine").DefValue)
	assert.Equal(t, "medium", tr.Flags().Lookup("model").DefValue)
}

func TestTranscribeCommandSuccess(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/in", 0o755))
	require.NoError(t, fs.MkdirAll("/out", 0o755))
	writeWAV(t, fs, "/in/memo.wav")
	opts := stubPipeline(t, cannedBackend{text: "Oui. Oui. Non."})

	root := NewRootCommand(context.Background(), fs, testEnv(t, fs), logging.NewTestLogger())
	out, err := execute(t, root, "transcribe", "/in/memo.wav", "/out/notes", "--language", "en", "--model", "small")
	require.NoError(t, err)

	assert.Contains(t, out, "transcription in progress...")
	assert.Contains(t, out, "done, transcript saved: /out/notes.docx")
	exists, _ := afero.Exists(fs, "/out/notes.docx")
	assert.True(t, exists)
	assert.Equal(t, "en", opts.Language)
	assert.Equal(t, "small", opts.Model)
}

func TestTranscribeCommandDefaultsOutputNextToAudio(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/in", 0o755))
	writeWAV(t, fs, "/in/memo.wav")
	stubPipeline(t, cannedBackend{text: "Bonjour."})

	root := NewRootCommand(context.Background(), fs, testEnv(t, fs), logging.NewTestLogger())
	_, err := execute(t, root, "transcribe", "/in/memo.wav")
	require.NoError(t, err)
	exists, _ := afero.Exists(fs, "/in/memo.docx")
	assert.True(t, exists)
}

func TestTranscribeCommandTrimsPaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/in", 0o755))
	require.NoError(t, fs.MkdirAll("/out", 0o755))
	writeWAV(t, fs, "/in/memo.wav")
	stubPipeline(t, cannedBackend{text: "Bonjour."})

	t.Run("Args", func(t *testing.T) {
		root := NewRootCommand(context.Background(), fs, testEnv(t, fs), logging.NewTestLogger())
		out, err := execute(t, root, "transcribe", "  /in/memo.wav ", " /out/notes\t")
		require.NoError(t, err)
		assert.Contains(t, out, "done, transcript saved: /out/notes.docx")
		exists, _ := afero.Exists(fs, "/out/notes.docx")
		assert.True(t, exists)
	})

	t.Run("DefaultOutput", func(t *testing.T) {
		root := NewRootCommand(context.Background(), fs, testEnv(t, fs), logging.NewTestLogger())
		_, err := execute(t, root, "transcribe", " /in/memo.wav  ")
		require.NoError(t, err)
		exists, _ := afero.Exists(fs, "/in/memo.docx")
		assert.True(t, exists)
	})

	t.Run("Prompted", func(t *testing.T) {
		origPrompt, origSpin := PromptForPathsFn, RunSpinnerFn
		t.Cleanup(func() { PromptForPathsFn, RunSpinnerFn = origPrompt, origSpin })
		PromptForPathsFn = func(afero.Fs, string, string) (string, string, error) {
			return " /in/memo.wav\n", "  /out/prompted ", nil
		}
		RunSpinnerFn = func(_ string, action func()) error {
			action()
			return nil
		}

		env := testEnv(t, fs)
		env.NonInteractive = "0"
		root := NewRootCommand(context.Background(), fs, env, logging.NewTestLogger())
		_, err := execute(t, root, "transcribe")
		require.NoError(t, err)
		exists, _ := afero.Exists(fs, "/out/prompted.docx")
		assert.True(t, exists)
	})
}

func TestTranscribeCommandDecodeFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/in", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/in/memo.wma", []byte("nope"), 0o644))
	stubPipeline(t, cannedBackend{text: "unused"})

	metricsFile := filepath.Join(t.TempDir(), "notescribe.prom")
	root := NewRootCommand(context.Background(), fs, testEnv(t, fs), logging.NewTestLogger())
	out, err := execute(t, root, "transcribe", "/in/memo.wma", "/in/memo.docx", "--metrics-textfile", metricsFile)

	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrAudioDecode)
	assert.Contains(t, out, "transcription failed: failed to decode audio: ffmpeg: Invalid data found")
	exists, _ := afero.Exists(fs, "/in/memo.docx")
	assert.False(t, exists)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `notescribe_runs_total{code="AUDIO_DECODE",outcome="failed"} 1`)
}

func TestTranscribeCommandMissingAudio(t *testing.T) {
	fs := afero.NewMemMapFs()
	stubPipeline(t, cannedBackend{})

	root := NewRootCommand(context.Background(), fs, testEnv(t, fs), logging.NewTestLogger())
	_, err := execute(t, root, "transcribe")
	assert.ErrorIs(t, err, perrors.ErrInputValidation)
}

func TestTranscribeCommandPromptsWhenInteractive(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/in", 0o755))
	writeWAV(t, fs, "/in/picked.wav")
	stubPipeline(t, cannedBackend{text: "Salut."})

	origPrompt, origSpin := PromptForPathsFn, RunSpinnerFn
	t.Cleanup(func() { PromptForPathsFn, RunSpinnerFn = origPrompt, origSpin })
	PromptForPathsFn = func(_ afero.Fs, a, o string) (string, string, error) {
		assert.Empty(t, a)
		assert.Empty(t, o)
		return "/in/picked.wav", "/in/picked-notes", nil
	}
	spun := false
	RunSpinnerFn = func(title string, action func()) error {
		spun = true
		assert.Equal(t, "transcription in progress...", title)
		action()
		return nil
	}

	env := testEnv(t, fs)
	env.NonInteractive = "0"
	root := NewRootCommand(context.Background(), fs, env, logging.NewTestLogger())
	out, err := execute(t, root, "transcribe")
	require.NoError(t, err)
	assert.True(t, spun)
	assert.Contains(t, out, "/in/picked-notes.docx")
}

func TestBuildPipelineUnknownEngine(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := buildPipeline(context.Background(), fs, testEnv(t, fs), transcribeOptions{Engine: "nope", Model: "medium"}, logging.NewTestLogger())
	assert.ErrorContains(t, err, `unknown engine "nope"`)
}

func TestBuildPipelineWiresHistory(t *testing.T) {
	fs := afero.NewMemMapFs()
	h, err := buildPipeline(context.Background(), fs, testEnv(t, fs), transcribeOptions{Engine: asr.EngineOpenAI, Model: "whisper-1"}, logging.NewTestLogger())
	require.NoError(t, err)
	defer h.Close()
	assert.NotNil(t, h.Orchestrator.History)
	assert.Equal(t, asr.EngineOpenAI, h.Orchestrator.EngineName)

	h2, err := buildPipeline(context.Background(), fs, testEnv(t, fs), transcribeOptions{Engine: asr.EngineOpenAI, Model: "whisper-1", NoHistory: true}, logging.NewTestLogger())
	require.NoError(t, err)
	defer h2.Close()
	assert.Nil(t, h2.Orchestrator.History)
}

func TestHistoryCommand(t *testing.T) {
	fs := afero.NewOsFs()
	env := testEnv(t, fs)
	env.HistoryDB = filepath.Join(t.TempDir(), "history.db")

	root := NewRootCommand(context.Background(), fs, env, logging.NewTestLogger())
	out, err := execute(t, root, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "no runs recorded yet")

	store, err := history.Open(fs, env.HistoryDB, logging.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), history.Run{
		ID: "run-1", StartedAt: time.Now().Add(-time.Minute), Duration: 2 * time.Second,
		AudioPath: "/in/a.wma", OutputPath: "/out/a.docx", Outcome: history.OutcomeFailed, ErrorCode: "AUDIO_DECODE",
	}))
	require.NoError(t, store.Close())

	root = NewRootCommand(context.Background(), fs, env, logging.NewTestLogger())
	out, err = execute(t, root, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "failed (AUDIO_DECODE)")
	assert.Contains(t, out, "/out/a.docx")
}

func TestModelsPullAndList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ggml-tiny.bin" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(bytes.Repeat([]byte{1}, 2048))
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	env := testEnv(t, fs)
	env.ModelBaseURL = srv.URL

	root := NewRootCommand(context.Background(), fs, env, logging.NewTestLogger())
	out, err := execute(t, root, "models", "pull", "tiny")
	require.NoError(t, err)
	assert.Contains(t, out, "model ready: /models/ggml-tiny.bin (2.0 kB)")

	root = NewRootCommand(context.Background(), fs, env, logging.NewTestLogger())
	out, err = execute(t, root, "models", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "tiny (2.0 kB)")
	assert.Contains(t, out, "  medium")

	root = NewRootCommand(context.Background(), fs, env, logging.NewTestLogger())
	_, err = execute(t, root, "models", "pull", "large-v9")
	assert.ErrorContains(t, err, "status code 404")
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "plain", failureMessage(errors.New("plain")))
	pe := perrors.NewInputValidationError("audio path is required")
	assert.Equal(t, "audio path is required", failureMessage(pe))
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "/in/memo.docx", defaultOutputPath("/in/memo.wma"))
	assert.Equal(t, "", defaultOutputPath(""))
	assert.Equal(t, []string{".wma", ".mp3", ".wav", ".m4a"}, pickerTypes())
}

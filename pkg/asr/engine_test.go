package asr

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/notescribe/notescribe/pkg/audio"
	perrors "github.com/notescribe/notescribe/pkg/errors"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	text     string
	err      error
	closed   bool
	gotPath  string
	gotLang  string
	gotOpts  DecodeOptions
	inferred int
}

func (m *fakeModel) Infer(_ context.Context, wavPath, language string, opts DecodeOptions) (string, error) {
	m.inferred++
	m.gotPath, m.gotLang, m.gotOpts = wavPath, language, opts
	return m.text, m.err
}

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

type fakeBackend struct {
	mu      sync.Mutex
	model   *fakeModel
	loadErr error
	loads   int
	nilLoad bool
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Accepts(f audio.Format) bool { return f == audio.FormatWAV }

func (b *fakeBackend) Load(_ context.Context, _ string) (Model, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads++
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	if b.nilLoad {
		return nil, nil
	}
	return b.model, nil
}

func TestDefaultDecodeOptions(t *testing.T) {
	opts := DefaultDecodeOptions()
	assert.Zero(t, opts.Temperature)
	assert.Equal(t, 3, opts.BeamSize)
	assert.Equal(t, 3, opts.BestOf)
}

func TestEngineLoadsOnce(t *testing.T) {
	backend := &fakeBackend{model: &fakeModel{text: "  Bonjour.  "}}
	e := NewEngine(backend, "medium", logging.NewTestLogger())
	loads := 0
	e.OnLoad = func() { loads++ }

	for i := 0; i < 3; i++ {
		res, err := e.Transcribe(context.Background(), "/tmp/a.wav", "fr")
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, "Bonjour.", res.Text)
	}

	assert.Equal(t, 1, backend.loads)
	assert.Equal(t, 1, e.LoadCount())
	assert.Equal(t, 1, loads)
	assert.Equal(t, 3, backend.model.inferred)
	assert.Equal(t, "fr", backend.model.gotLang)
	assert.Equal(t, "/tmp/a.wav", backend.model.gotPath)
	assert.Equal(t, DefaultDecodeOptions(), backend.model.gotOpts)
}

func TestEngineConcurrentLoadIsSingle(t *testing.T) {
	backend := &fakeBackend{model: &fakeModel{}}
	e := NewEngine(backend, "medium", logging.NewTestLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Load(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, backend.loads)
}

func TestEngineEmptyTranscriptIsValid(t *testing.T) {
	backend := &fakeBackend{model: &fakeModel{text: " \n "}}
	e := NewEngine(backend, "medium", logging.NewTestLogger())

	res, err := e.Transcribe(context.Background(), "/tmp/silence.wav", "fr")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Empty(t, res.Text)
}

func TestEngineLoadFailure(t *testing.T) {
	cause := errors.New("ggml: invalid model file")
	backend := &fakeBackend{loadErr: cause}
	e := NewEngine(backend, "medium", logging.NewTestLogger())

	res, err := e.Transcribe(context.Background(), "/tmp/a.wav", "fr")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrModelLoad)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, e.LoadCount())

	// A failed load is not cached.
	_, err = e.Transcribe(context.Background(), "/tmp/a.wav", "fr")
	require.Error(t, err)
	assert.Equal(t, 2, backend.loads)
}

func TestEngineNilModel(t *testing.T) {
	e := NewEngine(&fakeBackend{nilLoad: true}, "medium", logging.NewTestLogger())
	_, err := e.Transcribe(context.Background(), "/tmp/a.wav", "fr")
	assert.ErrorIs(t, err, perrors.ErrModelLoad)
	assert.ErrorIs(t, err, ErrNilResult)
}

func TestEngineInferenceFailure(t *testing.T) {
	cause := errors.New("whisper-cli: exit code 1")
	backend := &fakeBackend{model: &fakeModel{err: cause}}
	e := NewEngine(backend, "medium", logging.NewTestLogger())

	res, err := e.Transcribe(context.Background(), "/tmp/a.wav", "fr")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, perrors.ErrTranscription)
	assert.ErrorIs(t, err, cause)
	assert.False(t, perrors.HasErrorCode(err, perrors.ErrModelLoad))
}

func TestEngineCloseReloads(t *testing.T) {
	backend := &fakeBackend{model: &fakeModel{text: "x"}}
	e := NewEngine(backend, "medium", logging.NewTestLogger())

	_, err := e.Transcribe(context.Background(), "/tmp/a.wav", "fr")
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.True(t, backend.model.closed)
	require.NoError(t, e.Close())

	_, err = e.Transcribe(context.Background(), "/tmp/a.wav", "fr")
	require.NoError(t, err)
	assert.Equal(t, 2, e.LoadCount())
}

func TestEngineAccepts(t *testing.T) {
	e := NewEngine(&fakeBackend{}, "medium", logging.NewTestLogger())
	assert.True(t, e.Accepts(audio.FormatWAV))
	assert.False(t, e.Accepts(audio.FormatWMA))
}

package asr

import (
	"context"
	"errors"
	"fmt"

	"github.com/notescribe/notescribe/pkg/audio"
	"github.com/sashabaranov/go-openai"
)

// ErrMissingAPIKey is returned when the hosted backend has no credentials.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

var openAIFormats = map[audio.Format]bool{
	audio.FormatFLAC: true,
	audio.FormatM4A:  true,
	audio.FormatMP3:  true,
	audio.FormatMP4:  true,
	audio.FormatMPEG: true,
	audio.FormatMPGA: true,
	audio.FormatOGA:  true,
	audio.FormatOGG:  true,
	audio.FormatWAV:  true,
	audio.FormatWEBM: true,
}

// OpenAI transcribes through the hosted Whisper API.
type OpenAI struct {
	cfg Config
}

// NewOpenAI returns the hosted backend.
func NewOpenAI(cfg Config) *OpenAI {
	return &OpenAI{cfg: cfg.withDefaults()}
}

func (o *OpenAI) Name() string { return EngineOpenAI }

func (o *OpenAI) Accepts(format audio.Format) bool { return openAIFormats[format] }

// Load builds the API client. model is ignored when it names a local
// checkpoint; the API only serves whisper-1.
func (o *OpenAI) Load(_ context.Context, model string) (Model, error) {
	if o.cfg.OpenAIKey == "" {
		return nil, ErrMissingAPIKey
	}
	conf := openai.DefaultConfig(o.cfg.OpenAIKey)
	if o.cfg.OpenAIBaseURL != "" {
		conf.BaseURL = o.cfg.OpenAIBaseURL
	}
	if model == "" || !isHostedModel(model) {
		o.cfg.Logger.Debug("using hosted whisper model", "requested", model, "model", openai.Whisper1)
		model = openai.Whisper1
	}
	return &openAIModel{client: openai.NewClientWithConfig(conf), model: model}, nil
}

func isHostedModel(name string) bool {
	switch name {
	case openai.Whisper1, "gpt-4o-transcribe", "gpt-4o-mini-transcribe":
		return true
	}
	return false
}

type openAIModel struct {
	client *openai.Client
	model  string
}

func (m *openAIModel) Infer(ctx context.Context, wavPath, language string, opts DecodeOptions) (string, error) {
	resp, err := m.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       m.model,
		FilePath:    wavPath,
		Language:    language,
		Temperature: opts.Temperature,
		Format:      openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return resp.Text, nil
}

func (m *openAIModel) Close() error { return nil }

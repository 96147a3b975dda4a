package asr

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/notescribe/notescribe/pkg/download"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/notescribe/notescribe/pkg/scribeexec"
	"github.com/spf13/afero"
)

const (
	EngineWhisperCPP      = "whisper-cpp"
	EngineWhisper         = "whisper"
	EngineOpenAI          = "openai"
	EngineWhisperBindings = "whisper-bindings"
)

// Config carries everything a backend factory may need.
type Config struct {
	Fs         afero.Fs
	Runner     scribeexec.Runner
	Downloader *download.Client
	Logger     *logging.Logger

	ModelDir string
	TmpDir   string

	// ModelBaseURL overrides where ggml checkpoints are fetched from.
	ModelBaseURL string

	WhisperCPPBin string
	WhisperBin    string

	OpenAIKey     string
	OpenAIBaseURL string

	DownloadTimeout time.Duration

	// LookPath resolves executables; nil means scribeexec.LookPath.
	LookPath func(string) (string, error)
}

func (c Config) withDefaults() Config {
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	if c.Logger == nil {
		c.Logger = logging.GetLogger()
	}
	if c.Runner == nil {
		c.Runner = scribeexec.NewTaskRunner(c.Logger)
	}
	if c.Downloader == nil {
		c.Downloader = download.NewClient(c.Logger)
	}
	if c.LookPath == nil {
		c.LookPath = scribeexec.LookPath
	}
	if c.WhisperCPPBin == "" {
		c.WhisperCPPBin = "whisper-cli"
	}
	if c.WhisperBin == "" {
		c.WhisperBin = "whisper"
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = 10 * time.Minute
	}
	return c
}

// Factory builds a backend.
type Factory func(Config) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available under name. It panics on duplicates.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("asr: backend registered twice: " + name)
	}
	registry[name] = f
}

// New builds the backend registered under name.
func New(name string, cfg Config) (Backend, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown engine %q (available: %v)", name, Backends())
	}
	return f(cfg.withDefaults())
}

// Backends lists the registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(EngineWhisperCPP, func(c Config) (Backend, error) { return NewWhisperCPP(c), nil })
	Register(EngineWhisper, func(c Config) (Backend, error) { return NewWhisperCLI(c), nil })
	Register(EngineOpenAI, func(c Config) (Backend, error) { return NewOpenAI(c), nil })
}

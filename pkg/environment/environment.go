package environment

import (
	"os"
	"path/filepath"

	env "github.com/Netflix/go-env"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

const (
	// EnvFileName is read from the working directory before the process environment.
	EnvFileName = ".env"
	// AppName names the per-user cache and data directories.
	AppName = "notescribe"
)

// Environment holds configuration loaded from the OS, a .env file or defaults.
type Environment struct {
	Pwd            string `env:"PWD"`
	Engine         string `env:"NOTESCRIBE_ENGINE,default=whisper-cpp"`
	Model          string `env:"NOTESCRIBE_MODEL,default=medium"`
	Language       string `env:"NOTESCRIBE_LANGUAGE,default=fr"`
	ModelDir       string `env:"NOTESCRIBE_MODEL_DIR"`
	ModelBaseURL   string `env:"NOTESCRIBE_MODEL_BASE_URL"`
	HistoryDB      string `env:"NOTESCRIBE_HISTORY_DB"`
	TmpDir         string `env:"NOTESCRIBE_TMPDIR"`
	FFmpegBin      string `env:"FFMPEG_BIN,default=ffmpeg"`
	WhisperCPPBin  string `env:"WHISPER_CPP_BIN,default=whisper-cli"`
	WhisperBin     string `env:"WHISPER_BIN,default=whisper"`
	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `env:"OPENAI_BASE_URL"`
	NonInteractive string `env:"NON_INTERACTIVE,default=0"`
	TimeoutSec     int    `env:"TIMEOUT,default=600"`
	Extras         env.EnvSet
}

// IsNonInteractive reports whether prompts must be skipped.
func (e *Environment) IsNonInteractive() bool {
	return e.NonInteractive == "1"
}

// loadDotEnv exports the variables of dir/.env that are not already set.
// A missing file is not an error.
func loadDotEnv(fs afero.Fs, dir string) error {
	envFile := filepath.Join(dir, EnvFileName)
	exists, err := afero.Exists(fs, envFile)
	if err != nil || !exists {
		return err
	}

	f, err := fs.Open(envFile)
	if err != nil {
		return err
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return err
	}
	for k, v := range values {
		if _, set := os.LookupEnv(k); !set {
			if err := os.Setenv(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyDefaults fills the settings whose defaults depend on the user's XDG directories.
func applyDefaults(e *Environment) {
	if e.Engine == "" {
		e.Engine = "whisper-cpp"
	}
	if e.Model == "" {
		e.Model = "medium"
	}
	if e.Language == "" {
		e.Language = "fr"
	}
	if e.ModelDir == "" {
		e.ModelDir = filepath.Join(xdg.CacheHome, AppName, "models")
	}
	if e.HistoryDB == "" {
		e.HistoryDB = filepath.Join(xdg.DataHome, AppName, "history.db")
	}
	if e.TmpDir == "" {
		e.TmpDir = os.TempDir()
	}
	if e.FFmpegBin == "" {
		e.FFmpegBin = "ffmpeg"
	}
	if e.WhisperCPPBin == "" {
		e.WhisperCPPBin = "whisper-cli"
	}
	if e.WhisperBin == "" {
		e.WhisperBin = "whisper"
	}
	if e.TimeoutSec <= 0 {
		e.TimeoutSec = 600
	}
}

// NewEnvironment initializes and returns a new Environment based on provided or default settings.
func NewEnvironment(fs afero.Fs, environ *Environment) (*Environment, error) {
	if environ != nil {
		// Provided environments come from tests and embedding callers: never prompt.
		e := *environ
		e.NonInteractive = "1"
		applyDefaults(&e)
		return &e, nil
	}

	pwd, _ := os.Getwd()
	if err := loadDotEnv(fs, pwd); err != nil {
		return nil, err
	}

	environment := &Environment{}
	extras, err := env.UnmarshalFromEnviron(environment)
	if err != nil {
		return nil, err
	}
	environment.Extras = extras
	if environment.Pwd == "" {
		environment.Pwd = pwd
	}
	applyDefaults(environment)

	return environment, nil
}

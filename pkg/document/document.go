// Package document renders transcripts as word-processing documents.
package document

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gingfrederik/docx"
	perrors "github.com/notescribe/notescribe/pkg/errors"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/spf13/afero"
)

// Extension is appended by EnsureExtension.
const Extension = ".docx"

// EnsureExtension appends .docx to path unless it already ends with it.
func EnsureExtension(path string) string {
	if strings.EqualFold(filepath.Ext(path), Extension) {
		return path
	}
	return path + Extension
}

// Assembler writes single-paragraph documents.
type Assembler struct {
	Fs     afero.Fs
	Logger *logging.Logger
}

// NewAssembler returns an assembler writing to fs.
func NewAssembler(fs afero.Fs, logger *logging.Logger) *Assembler {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Assembler{Fs: fs, Logger: logger}
}

// Write stores text as the only paragraph of a new document at path,
// replacing whatever was there. The document is rendered next to path and
// renamed into place, so path is either the old file or the complete new one.
func (a *Assembler) Write(text, path string) error {
	if err := a.write(text, path); err != nil {
		return perrors.NewDocumentWriteError(path, err)
	}
	a.Logger.Info("document written", "path", path, "chars", len([]rune(text)))
	return nil
}

func (a *Assembler) write(text, path string) error {
	dir := filepath.Dir(path)
	if ok, err := afero.DirExists(a.Fs, dir); err != nil || !ok {
		return fmt.Errorf("output directory %s does not exist", dir)
	}

	tmp, err := afero.TempFile(a.Fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary document: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = a.Fs.Remove(tmpPath)
		}
	}()

	f := docx.NewFile()
	f.AddParagraph().AddText(text)
	if err := f.Write(tmp); err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temporary document: %w", err)
	}
	if err := a.Fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	committed = true
	return nil
}

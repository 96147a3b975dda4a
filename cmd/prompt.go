package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/notescribe/notescribe/pkg/audio"
	"github.com/notescribe/notescribe/pkg/document"
	"github.com/spf13/afero"
)

// defaultOutputPath puts the document next to the recording.
func defaultOutputPath(audioPath string) string {
	if audioPath == "" {
		return ""
	}
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + document.Extension
}

func pickerTypes() []string {
	types := make([]string, 0, len(audio.PromptFormats))
	for _, f := range audio.PromptFormats {
		types = append(types, "."+string(f))
	}
	return types
}

func validateOutputPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("output path cannot be empty")
	}
	return nil
}

// promptForPaths asks for whichever path is still missing.
func promptForPaths(fs afero.Fs, audioPath, outputPath string) (string, string, error) {
	if audioPath == "" {
		cwd, _ := os.Getwd()
		picker := huh.NewFilePicker().
			Title("Select the voice note to transcribe").
			Description(fmt.Sprintf("Supported: %s (other formats work from the command line)", strings.Join(pickerTypes(), " "))).
			CurrentDirectory(cwd).
			AllowedTypes(pickerTypes()).
			Picking(true).
			Value(&audioPath)
		if err := huh.NewForm(huh.NewGroup(picker)).Run(); err != nil {
			return "", "", err
		}
		if ok, _ := afero.Exists(fs, audioPath); !ok {
			return "", "", fmt.Errorf("audio file %s does not exist", audioPath)
		}
	}

	if outputPath == "" {
		outputPath = defaultOutputPath(audioPath)
		input := huh.NewInput().
			Title("Save the transcript as").
			Prompt("> ").
			Validate(validateOutputPath).
			Value(&outputPath)
		if err := input.Run(); err != nil {
			return "", "", err
		}
	}

	return audioPath, outputPath, nil
}

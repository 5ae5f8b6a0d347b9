package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPromptFile is the legacy YAML prompt file looked up in the working directory
const DefaultPromptFile = "config.yaml"

// promptFile is the layout of the legacy prompt file. Missing keys keep the current values.
type promptFile struct {
	Prompt        string `yaml:"prompt"`
	ImagePrompt   string `yaml:"image_prompt"`
	CombinePrompt string `yaml:"combine_prompt"`
}

// applyPromptFile overlays prompts from the YAML file named by prompts.file.
// A missing file is not an error; a file that cannot be parsed is.
func applyPromptFile(config *Config) error {
	path := config.Prompts.File
	if v := os.Getenv("TICKETDIGEST_PROMPTS_FILE"); v != "" {
		path = v
	}
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read prompt file %s: %w", path, err)
	}

	var prompts promptFile
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return fmt.Errorf("failed to parse prompt file %s: %w", path, err)
	}

	if prompts.Prompt != "" {
		config.Prompts.Text = prompts.Prompt
	}
	if prompts.ImagePrompt != "" {
		config.Prompts.Image = prompts.ImagePrompt
	}
	if prompts.CombinePrompt != "" {
		config.Prompts.Combine = prompts.CombinePrompt
	}
	return nil
}

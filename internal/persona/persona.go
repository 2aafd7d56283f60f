// Package persona loads the character prompt the assistant speaks as.
package persona

import (
	"os"
	"strings"

	"ragchat/internal/domain"
)

// Persona is the system prompt describing the assistant and the name its
// replies are labelled with in the conversation history.
type Persona struct {
	Name   string
	Prompt string
}

// Load reads the persona prompt from a markdown file.
func Load(path, name string) (Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, domain.NewError("load persona", domain.ErrConfiguration, path, "%v", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return Persona{}, domain.NewError("load persona", domain.ErrConfiguration, path, "persona file is empty")
	}
	if name == "" {
		name = "Assistant"
	}
	return Persona{Name: name, Prompt: prompt}, nil
}

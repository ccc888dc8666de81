package initcmd

import (
	"embed"
	"fmt"
)

//go:embed templates/*
var templateFS embed.FS

// Embedded template names.
const (
	configTemplate    = "config.yaml"
	routineTemplate   = "routine.yaml"
	gitignoreTemplate = "gitignore"
)

// ReadTemplate returns the embedded template called name.
func ReadTemplate(name string) (string, error) {
	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	return string(data), nil
}

// MustReadTemplate is ReadTemplate for the names declared above. It panics
// when name is not embedded.
func MustReadTemplate(name string) string {
	content, err := ReadTemplate(name)
	if err != nil {
		panic(err)
	}
	return content
}

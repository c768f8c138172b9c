// Package prompt loads the assistant persona sent with every hosted
// completion: the system instruction and the sampling settings.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed persona.yaml
var defaultPersona []byte

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
)

type Persona struct {
	Model  string `yaml:"model"`
	System string `yaml:"system"`
	Style  struct {
		Temperature float64 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"style"`
}

// Default returns the embedded persona.
func Default() Persona {
	p, err := parse(defaultPersona)
	if err != nil {
		panic(fmt.Sprintf("prompt: embedded persona is invalid: %v", err))
	}
	return p
}

// Load reads a persona from path. An empty path yields the embedded default.
func Load(path string) (Persona, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona %s: %w", path, err)
	}
	p, err := parse(b)
	if err != nil {
		return Persona{}, fmt.Errorf("parse persona %s: %w", path, err)
	}
	return p, nil
}

// personaFile distinguishes an absent style key from an explicit zero.
type personaFile struct {
	Model  string `yaml:"model"`
	System string `yaml:"system"`
	Style  struct {
		Temperature *float64 `yaml:"temperature"`
		MaxTokens   *int     `yaml:"max_tokens"`
	} `yaml:"style"`
}

func parse(b []byte) (Persona, error) {
	var f personaFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Persona{}, err
	}

	var p Persona
	p.Model = strings.TrimSpace(f.Model)
	p.System = strings.TrimSpace(f.System)
	if p.System == "" {
		return Persona{}, fmt.Errorf("system instruction is empty")
	}

	p.Style.Temperature = defaultTemperature
	if t := f.Style.Temperature; t != nil {
		if *t < 0 || *t > 1 {
			return Persona{}, fmt.Errorf("temperature %v outside [0, 1]", *t)
		}
		p.Style.Temperature = *t
	}
	p.Style.MaxTokens = defaultMaxTokens
	if n := f.Style.MaxTokens; n != nil {
		if *n <= 0 {
			return Persona{}, fmt.Errorf("max_tokens must be positive, got %d", *n)
		}
		p.Style.MaxTokens = *n
	}
	return p, nil
}

package openai

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// PromptSet holds the templates for every analysis step. Templates use the
// placeholders {{title}}, {{content}}, {{hs}} and {{fs}}.
type PromptSet struct {
	System   string `yaml:"system"`
	Summary  string `yaml:"summary"`
	Headline string `yaml:"headline"`
	Fact     string `yaml:"fact"`
	Reason   string `yaml:"reason"`
}

// LoadPrompts reads a prompt set from path, or the built-in set when path
// is empty. Steps missing from the file fall back to the built-in text.
func LoadPrompts(path string) (PromptSet, error) {
	var defaults PromptSet
	if err := yaml.Unmarshal(defaultPrompts, &defaults); err != nil {
		return PromptSet{}, fmt.Errorf("decode default prompts: %w", err)
	}
	if path == "" {
		return defaults, defaults.Validate()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return PromptSet{}, fmt.Errorf("read prompts: %w", err)
	}
	set := defaults
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return PromptSet{}, fmt.Errorf("decode prompts %s: %w", path, err)
	}
	return set, set.Validate()
}

// Validate ensures every step has a template.
func (p PromptSet) Validate() error {
	var errs []error
	for name, tmpl := range map[string]string{
		"summary":  p.Summary,
		"headline": p.Headline,
		"fact":     p.Fact,
		"reason":   p.Reason,
	} {
		if strings.TrimSpace(tmpl) == "" {
			errs = append(errs, fmt.Errorf("prompt %q is empty", name))
		}
	}
	return errors.Join(errs...)
}

func render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

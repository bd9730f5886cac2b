package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ContextPlaceholder is replaced with the retrieved chunks in the system prompt.
const ContextPlaceholder = "{context}"

// Prompts holds the instructions sent to the LLM.
type Prompts struct {
	// System is the answering instruction; it must contain {context}.
	System string `yaml:"system"`
	// Contextualize turns a follow-up question into a standalone one.
	Contextualize string `yaml:"contextualize"`
}

var defaultPrompts = Prompts{
	System: "You are a medical assistant for question-answering tasks. " +
		"Use the following pieces of retrieved context to answer the question. " +
		"If you don't know the answer, say that you don't know. " +
		"Use three sentences maximum and keep the answer concise.\n\n" +
		ContextPlaceholder,
	Contextualize: "Given a chat history and the latest user question which might reference " +
		"context in the chat history, formulate a standalone question which can be understood " +
		"without the chat history. Do NOT answer the question, just reformulate it if needed " +
		"and otherwise return it as is.",
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() Prompts {
	return defaultPrompts
}

// LoadPrompts reads prompts from a YAML file. A missing file yields the
// built-in prompts; fields absent from the file keep their defaults.
func LoadPrompts(path string) (*Prompts, error) {
	prompts := defaultPrompts
	if path == "" {
		return &prompts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Printf("Warning: prompts file not found at %s, using default prompts\n", path)
			return &prompts, nil
		}
		return nil, fmt.Errorf("read prompts file: %w", err)
	}

	var fromFile Prompts
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("parse prompts YAML: %w", err)
	}

	if strings.TrimSpace(fromFile.System) != "" {
		prompts.System = fromFile.System
	}
	if strings.TrimSpace(fromFile.Contextualize) != "" {
		prompts.Contextualize = fromFile.Contextualize
	}

	if !strings.Contains(prompts.System, ContextPlaceholder) {
		return nil, fmt.Errorf("system prompt in %s must contain %s", path, ContextPlaceholder)
	}

	return &prompts, nil
}

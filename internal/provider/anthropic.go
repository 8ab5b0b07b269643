package provider

import (
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// NewAnthropicClient returns a client using the API key from the env.
// Options are applied after the environment defaults.
func NewAnthropicClient(opts ...option.RequestOption) *anthropic.Client {
	c := anthropic.NewClient(opts...)
	return &c
}

const DefaultModel = anthropic.ModelClaude3_7SonnetLatest
const APIVersion = "2023-06-01"

// Model resolves a configured model name, falling back to DefaultModel.
func Model(name string) anthropic.Model {
	if name = strings.TrimSpace(name); name == "" {
		return DefaultModel
	}
	return anthropic.Model(name)
}

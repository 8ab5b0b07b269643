package provider_test

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/recall-agent/internal/provider"
)

func TestModel(t *testing.T) {
	cases := []struct {
		in   string
		want anthropic.Model
	}{
		{"", provider.DefaultModel},
		{"   ", provider.DefaultModel},
		{"claude-sonnet-4-0", anthropic.Model("claude-sonnet-4-0")},
		{" claude-3-5-haiku-latest ", anthropic.Model("claude-3-5-haiku-latest")},
	}
	for _, c := range cases {
		if got := provider.Model(c.in); got != c.want {
			t.Errorf("Model(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNewAnthropicClient(t *testing.T) {
	if provider.NewAnthropicClient() == nil {
		t.Fatal("nil client")
	}
}

// Package ai defines the raw text-completion backends used for narration.
package ai

import (
	"context"
	"errors"
	"strings"
)

var ErrEmptyResponse = errors.New("empty completion")

type Request struct {
	Model       string
	System      string
	Prompt      string
	JSON        bool
	MaxTokens   int
	Temperature float64
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Select returns the provider registered under name, falling back to def.
func Select(providers map[string]Provider, name string, def Provider) Provider {
	if p := providers[strings.ToLower(strings.TrimSpace(name))]; p != nil {
		return p
	}
	return def
}

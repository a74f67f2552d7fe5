// Package llmutil holds provider registration shared by binaries and tests.
package llmutil

import (
	"errors"

	"github.com/raglinehq/ragline/internal/llm"
	"github.com/raglinehq/ragline/internal/llm/openai"
)

// RegisterDefaultProviders registers the built-in provider constructors:
// openai plus every OpenAI-compatible preset, and "custom" for any other
// OpenAI-compatible endpoint with an explicit base_url.
func RegisterDefaultProviders(factory *llm.ProviderFactory) {
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New(c.APIKey, c.Model, c.EmbedModel, c.BaseURL), nil
	})
	for name, url := range llm.KnownProviders {
		if name == "openai" {
			continue
		}
		factory.Register(name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = url
			}
			return openai.New(c.APIKey, c.Model, c.EmbedModel, base), nil
		})
	}
	factory.Register("custom", func(c llm.ProviderConfig) (llm.Provider, error) {
		if c.BaseURL == "" {
			return nil, errors.New("custom provider needs llm.base_url")
		}
		return openai.New(c.APIKey, c.Model, c.EmbedModel, c.BaseURL), nil
	})
}

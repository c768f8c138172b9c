package ollama

import (
	"context"
	"slices"

	openai "github.com/sashabaranov/go-openai"
)

// Models lists the models installed on the server through its
// OpenAI-compatible endpoint.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = c.baseURL + "/v1"
	cfg.HTTPClient = c.httpClient
	oc := openai.NewClientWithConfig(cfg)

	list, err := oc.ListModels(ctx)
	if err != nil {
		return nil, classify(err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// HasModel reports whether model is installed on the server.
func (c *Client) HasModel(ctx context.Context, model string) (bool, error) {
	ids, err := c.Models(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, model), nil
}

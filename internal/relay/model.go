package relay

import (
	"fmt"
	"strings"
)

// Model identifies which backend serves a chat request.
type Model int

const (
	modelInvalid Model = iota
	// ModelLocal is served by the local Ollama server.
	ModelLocal
	// ModelHosted is served by the Anthropic API.
	ModelHosted
)

// Wire identifiers accepted in ChatRequest.model.
const (
	LocalModelID  = "deepseek-r1:1.5b"
	HostedModelID = "claude-3-haiku"
)

// ParseModel resolves a wire identifier. Anything outside the two known
// identifiers yields a KindUnsupportedModel error.
func ParseModel(id string) (Model, error) {
	switch id {
	case LocalModelID:
		return ModelLocal, nil
	case HostedModelID:
		return ModelHosted, nil
	default:
		return modelInvalid, &Error{Kind: KindUnsupportedModel, Err: fmt.Errorf("model %q, expected one of %s", id, strings.Join(Models(), ", "))}
	}
}

func (m Model) String() string {
	switch m {
	case ModelLocal:
		return LocalModelID
	case ModelHosted:
		return HostedModelID
	default:
		return fmt.Sprintf("Model(%d)", int(m))
	}
}

// Models returns the supported wire identifiers.
func Models() []string {
	return []string{LocalModelID, HostedModelID}
}

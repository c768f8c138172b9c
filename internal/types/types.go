package types

type ChatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

// ErrorResponse mirrors the HTTP status in the body so clients can read
// both from the same place.
type ErrorResponse struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

type RootResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string       `json:"status"`
	Local  LocalHealth  `json:"local"`
	Hosted HostedHealth `json:"hosted"`
}

type LocalHealth struct {
	Reachable      bool   `json:"reachable"`
	Model          string `json:"model"`
	ModelInstalled bool   `json:"modelInstalled"`
	Error          string `json:"error,omitempty"`
}

type HostedHealth struct {
	Configured bool   `json:"configured"`
	Model      string `json:"model"`
}

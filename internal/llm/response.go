package llm

// RequestOptions carries per-call generation parameters. Nil fields leave the
// provider default in place.
type RequestOptions struct {
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	StopSeqs    []string
}

// Deterministic returns options pinning temperature to zero, which the
// grounded-answer path requires.
func Deterministic() *RequestOptions {
	zero := 0.0
	return &RequestOptions{Temperature: &zero}
}

// Response wraps a completion result.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
}

package models

// SummaryRequest is one call to the compute service. Prompt carries either file
// content or the concatenated child summaries, already rendered from a template.
type SummaryRequest struct {
	System      string
	Prompt      string
	ContextPath string
}

// SummaryResponse is the generated text plus the token usage the service reported.
type SummaryResponse struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// AIError is the common error body returned by OpenAI-compatible services.
type AIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

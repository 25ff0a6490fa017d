package ollama

import "time"

// EmbedRequest is the /api/embed request.
type EmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string
}

// EmbedResponse is the /api/embed response.
type EmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// GenerateRequest is the /api/generate request.
type GenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

// GenerateOptions are the sampling options sent with a generate request.
type GenerateOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
}

// GenerateResponse is the non-streaming /api/generate response.
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// ModelListResponse is the /api/tags response.
type ModelListResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelInfo describes an installed model.
type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

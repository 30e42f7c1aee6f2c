package agent

import "context"

// AIClient is the text generation model. CompleteJSON asks the model for a
// single JSON object.
type AIClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

// ImageClient is the image synthesis service.
type ImageClient interface {
	GenerateImage(ctx context.Context, req ImageRequest) (ImageResponse, error)
}

// Fixed illustration parameters.
const (
	ImageSize1024     = "1024x1024"
	ImageQualityHD    = "hd"
	DefaultModel      = "gpt-4o-mini"
	DefaultImageModel = "dall-e-3"
)

type ImageRequest struct {
	Prompt  string
	Count   int
	Size    string
	Quality string
}

type ImageData struct {
	URL           string
	RevisedPrompt string
}

type ImageResponse struct {
	Data []ImageData
}

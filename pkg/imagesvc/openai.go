package imagesvc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIEditor calls the OpenAI image edit endpoint. It makes one attempt per
// call; wrap it with WithRetry for backoff.
type OpenAIEditor struct {
	client openai.Client
}

// NewOpenAIEditor creates an editor. An empty baseURL uses the SDK default.
func NewOpenAIEditor(apiKey, baseURL string, opts ...option.RequestOption) *OpenAIEditor {
	all := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		all = append(all, option.WithBaseURL(baseURL))
	}
	all = append(all, opts...)
	return &OpenAIEditor{client: openai.NewClient(all...)}
}

// Edit uploads the canvas and mask files and returns the generated image URLs.
func (e *OpenAIEditor) Edit(ctx context.Context, req EditRequest) (EditResponse, error) {
	image, err := os.Open(req.ImagePath)
	if err != nil {
		return EditResponse{}, fmt.Errorf("open canvas: %w", err)
	}
	defer image.Close()

	mask, err := os.Open(req.MaskPath)
	if err != nil {
		return EditResponse{}, fmt.Errorf("open mask: %w", err)
	}
	defer mask.Close()

	n := req.N
	if n <= 0 {
		n = 1
	}
	params := openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(image, filepath.Base(req.ImagePath), "image/png"),
		},
		Mask:   openai.File(mask, filepath.Base(req.MaskPath), "image/png"),
		Prompt: req.Prompt,
		Model:  openai.ImageModel(req.Model),
		N:      openai.Int(int64(n)),
		Size:   openai.ImageEditParamsSize(req.Size),
	}
	if strings.HasPrefix(req.Model, "dall-e") {
		params.ResponseFormat = openai.ImageEditParamsResponseFormatURL
	}

	resp, err := e.client.Images.Edit(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return EditResponse{}, &StatusError{Op: "image edit", StatusCode: apiErr.StatusCode, Err: err}
		}
		return EditResponse{}, fmt.Errorf("image edit: %w", err)
	}

	out := EditResponse{Results: make([]Result, 0, len(resp.Data))}
	for i := range resp.Data {
		out.Results = append(out.Results, Result{URL: resp.Data[i].URL, B64JSON: resp.Data[i].B64JSON})
	}
	return out, nil
}

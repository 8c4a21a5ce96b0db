package classifier

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/yukawasensei/visual-ai-agent/internal/models"
)

const framePrompt = `Analyze this frame from a live commerce video. Identify the products
visible in the frame and classify the scene:
- product_explanation: the host is explaining or talking about a product
- product_showcase: a product is being displayed or demonstrated
- material_showcase: raw materials or fabric close-ups are shown
- other: none of the above`

// resultSchema constrains the model to the exact JSON shape we decode.
// Anything outside it is rejected as a parse failure rather than guessed at.
var resultSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"sceneType": {
			Type: genai.TypeString,
			Enum: []string{"product_explanation", "product_showcase", "material_showcase", "other"},
		},
		"objects": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"label":      {Type: genai.TypeString},
					"confidence": {Type: genai.TypeNumber},
				},
				Required: []string{"label", "confidence"},
			},
		},
		"confidence": {Type: genai.TypeNumber},
	},
	Required: []string{"sceneType", "confidence"},
}

// GeminiClassifier classifies frames with a Gemini vision model using
// schema-constrained JSON output.
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

func NewGeminiClassifier(ctx context.Context, apiKey, model string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClassifier{client: client, model: model}, nil
}

func (c *GeminiClassifier) Classify(ctx context.Context, frame Frame) (*models.ClassificationResult, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(framePrompt),
			genai.NewPartFromBytes(frame.Data, frame.MIMEType),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   resultSchema,
		Temperature:      genai.Ptr[float32](0.4),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrParse)
	}

	return decodeResult([]byte(resp.Candidates[0].Content.Parts[0].Text), frame.Timestamp)
}

// rawResult mirrors the response schema.
type rawResult struct {
	SceneType  string `json:"sceneType"`
	Objects    []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"objects"`
	Confidence float64 `json:"confidence"`
}

// decodeResult strictly decodes a model response. Unknown scene types and
// out-of-range confidences are parse failures, never best-effort guesses.
func decodeResult(data []byte, timestamp float64) (*models.ClassificationResult, error) {
	var raw rawResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	segType := models.SegmentType(raw.SceneType)
	if !segType.Valid() {
		return nil, fmt.Errorf("%w: unknown scene type %q", ErrParse, raw.SceneType)
	}
	if raw.Confidence < 0 || raw.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v out of range", ErrParse, raw.Confidence)
	}

	result := &models.ClassificationResult{
		Timestamp:  timestamp,
		Type:       segType,
		Confidence: raw.Confidence,
	}
	for _, obj := range raw.Objects {
		if obj.Label == "" {
			continue
		}
		if obj.Confidence < 0 || obj.Confidence > 1 {
			return nil, fmt.Errorf("%w: object confidence %v out of range", ErrParse, obj.Confidence)
		}
		result.Products = append(result.Products, models.Product{
			Name:       obj.Label,
			Confidence: obj.Confidence,
		})
	}
	return result, nil
}

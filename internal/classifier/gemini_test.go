package classifier

import (
	"errors"
	"testing"

	"github.com/yukawasensei/visual-ai-agent/internal/models"
)

func TestDecodeResult(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantErr  bool
		wantType models.SegmentType
		wantTags int
	}{
		{
			name:     "showcase",
			data:     `{"sceneType":"product_showcase","objects":[{"label":"phone","confidence":0.95}],"confidence":0.9}`,
			wantType: models.SegmentProductShowcase,
			wantTags: 1,
		},
		{
			name:     "noObjects",
			data:     `{"sceneType":"other","confidence":0.5}`,
			wantType: models.SegmentOther,
			wantTags: 0,
		},
		{
			name:     "emptyLabelSkipped",
			data:     `{"sceneType":"product_explanation","objects":[{"label":"","confidence":0.8},{"label":"mug","confidence":0.7}],"confidence":0.8}`,
			wantType: models.SegmentProductExplanation,
			wantTags: 1,
		},
		{name: "notJSON", data: `the scene shows a phone`, wantErr: true},
		{name: "unknownScene", data: `{"sceneType":"intro","confidence":0.9}`, wantErr: true},
		{name: "confidenceTooHigh", data: `{"sceneType":"other","confidence":1.5}`, wantErr: true},
		{name: "confidenceNegative", data: `{"sceneType":"other","confidence":-0.1}`, wantErr: true},
		{name: "objectConfidenceOutOfRange", data: `{"sceneType":"other","objects":[{"label":"x","confidence":2}],"confidence":0.5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeResult([]byte(tt.data), 12.5)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrParse) {
					t.Errorf("error %v should wrap ErrParse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeResult: %v", err)
			}
			if got.Type != tt.wantType {
				t.Errorf("type = %q, want %q", got.Type, tt.wantType)
			}
			if len(got.Products) != tt.wantTags {
				t.Errorf("products = %d, want %d", len(got.Products), tt.wantTags)
			}
			if got.Timestamp != 12.5 {
				t.Errorf("timestamp = %v, want 12.5", got.Timestamp)
			}
		})
	}
}

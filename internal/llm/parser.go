package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseClassification extracts the category slug and confidence from a raw
// model response. Providers occasionally wrap JSON in markdown fences
// despite instructions, so those are stripped first.
func parseClassification(content string) (ClassificationResponse, error) {
	var jsonResp struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}

	content = cleanMarkdownWrapper(content)

	if err := json.Unmarshal([]byte(content), &jsonResp); err != nil {
		return ClassificationResponse{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if jsonResp.Category == "" {
		return ClassificationResponse{}, fmt.Errorf("no category found in response")
	}
	if jsonResp.Confidence < 0 || jsonResp.Confidence > 1 {
		return ClassificationResponse{}, fmt.Errorf("confidence %f out of range", jsonResp.Confidence)
	}

	return ClassificationResponse{
		CategorySlug: jsonResp.Category,
		Confidence:   jsonResp.Confidence,
	}, nil
}

// cleanMarkdownWrapper strips ```json fences from a response.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

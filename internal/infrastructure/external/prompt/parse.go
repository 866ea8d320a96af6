package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
)

// ParseClassification decodes and validates a classification answer
func ParseClassification(content string) (*entity.ClassificationResult, error) {
	var raw struct {
		Category            string  `json:"category"`
		Priority            string  `json:"priority"`
		Confidence          float64 `json:"confidence"`
		Reasoning           string  `json:"reasoning"`
		SuggestedDepartment string  `json:"suggestedDepartment"`
	}
	if err := decode(content, &raw); err != nil {
		return nil, err
	}

	category := entity.Category(normalize(raw.Category))
	if !category.IsValid() {
		return nil, fmt.Errorf("%w: unknown category %q", entity.ErrParse, raw.Category)
	}
	priority := entity.Priority(normalize(raw.Priority))
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", entity.ErrParse, raw.Priority)
	}

	return &entity.ClassificationResult{
		Category:            category,
		Priority:            priority,
		Confidence:          clamp(raw.Confidence),
		Reasoning:           strings.TrimSpace(raw.Reasoning),
		SuggestedDepartment: strings.TrimSpace(raw.SuggestedDepartment),
	}, nil
}

// ParseHandling decodes a handling answer
func ParseHandling(content string) (*entity.HandlingResult, error) {
	var result entity.HandlingResult
	if err := decode(content, &result); err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.RecommendedAction) == "" {
		return nil, fmt.Errorf("%w: missing recommendedAction", entity.ErrParse)
	}
	result.Confidence = clamp(result.Confidence)
	return &result, nil
}

// ParseConversation decodes a chatbot answer. A missing confidence is
// reported as 0.8.
func ParseConversation(content string) (*entity.ChatbotResponse, error) {
	var raw struct {
		Response               string                    `json:"response"`
		SuggestedFormData      *entity.SuggestedFormData `json:"suggestedFormData"`
		ShouldTransitionToForm bool                      `json:"shouldTransitionToForm"`
		Confidence             *float64                  `json:"confidence"`
	}
	if err := decode(content, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.Response) == "" {
		return nil, fmt.Errorf("%w: missing response", entity.ErrParse)
	}

	confidence := 0.8
	if raw.Confidence != nil {
		confidence = clamp(*raw.Confidence)
	}

	form := raw.SuggestedFormData
	if form != nil {
		form.Priority = entity.Priority(normalize(string(form.Priority)))
		if form.Priority != "" && !form.Priority.IsValid() {
			form.Priority = ""
		}
		if *form == (entity.SuggestedFormData{}) {
			form = nil
		}
	}

	return &entity.ChatbotResponse{
		Response:               raw.Response,
		SuggestedFormData:      form,
		ShouldTransitionToForm: raw.ShouldTransitionToForm,
		Confidence:             confidence,
	}, nil
}

// decode unmarshals content, falling back to the first balanced JSON object
// when the model wrapped it in prose or markdown fences
func decode(content string, v interface{}) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("%w: empty response", entity.ErrParse)
	}

	err := json.Unmarshal([]byte(content), v)
	if err == nil {
		return nil
	}

	if jsonStr := ExtractJSON(content); jsonStr != "" {
		if err2 := json.Unmarshal([]byte(jsonStr), v); err2 == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", entity.ErrParse, err)
}

// ExtractJSON returns the first balanced {...} object in content, or ""
func ExtractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(content); i++ {
		c := content[i]

		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

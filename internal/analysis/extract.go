package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joescharf/focus/internal/models"
)

// ErrNoJSON is returned when a response holds no well-formed JSON object.
var ErrNoJSON = errors.New("no JSON object found in response")

// ExtractJSONObject returns the first balanced {...} substring of text that is
// valid JSON. Braces inside string literals are ignored. Candidates that
// balance but do not parse are skipped and the scan resumes at the next '{'.
func ExtractJSONObject(text string) (string, error) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		end := matchBrace(text, start)
		if end > 0 {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSON
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return i
			}
		}
	}
	return -1
}

// wireResult is the model's JSON reply. Pointers distinguish absent fields.
type wireResult struct {
	IsDistracted       *bool             `json:"isDistracted"`
	Reason             *string           `json:"reason"`
	Confidence         *float64          `json:"confidence"`
	DetectedApps       []string          `json:"detectedApps"`
	Analysis           string            `json:"analysis"`
	ScreenDescriptions map[string]string `json:"screenDescriptions"`
	AIMessage          *string           `json:"aiMessage"`
}

// ParseResponse extracts and decodes the model's judgement from raw text.
func ParseResponse(raw string) (models.AnalysisResult, error) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	var w wireResult
	if err := json.Unmarshal([]byte(obj), &w); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("decode analysis: %w", err)
	}

	res := models.AnalysisResult{
		Reason:             "Analysis completed",
		Confidence:         0.5,
		DetectedApps:       w.DetectedApps,
		Analysis:           w.Analysis,
		ScreenDescriptions: w.ScreenDescriptions,
		Source:             models.ResultSourceModel,
	}
	if w.IsDistracted != nil {
		res.IsDistracted = *w.IsDistracted
	}
	if w.Reason != nil && strings.TrimSpace(*w.Reason) != "" {
		res.Reason = *w.Reason
	}
	if w.Confidence != nil {
		res.Confidence = min(max(*w.Confidence, 0), 1)
	}
	if w.AIMessage != nil && strings.TrimSpace(*w.AIMessage) != "" {
		msg := *w.AIMessage
		res.AIMessage = &msg
	}
	return res, nil
}

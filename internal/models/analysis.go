package models

// ResultSource records which path produced an analysis result.
type ResultSource string

const (
	ResultSourceModel     ResultSource = "model"
	ResultSourceHeuristic ResultSource = "heuristic"
	ResultSourceNone      ResultSource = "none"
)

// AnalysisResult is the outcome of one capture/analyze tick.
type AnalysisResult struct {
	IsDistracted       bool              `json:"isDistracted"`
	Reason             string            `json:"reason"`
	Confidence         float64           `json:"confidence"`
	DetectedApps       []string          `json:"detectedApps,omitempty"`
	Analysis           string            `json:"analysis,omitempty"`
	ScreenDescriptions map[string]string `json:"screenDescriptions,omitempty"`
	AIMessage          *string           `json:"aiMessage"`
	Source             ResultSource      `json:"source"`
}

// Message returns the AI-generated message, or "" when none was produced.
func (r AnalysisResult) Message() string {
	if r.AIMessage == nil {
		return ""
	}
	return *r.AIMessage
}

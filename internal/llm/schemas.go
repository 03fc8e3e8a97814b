package llm

import "github.com/usabilitystudio/runtime/internal/domain"

// Decision is the structured output of navigate_decision (§4.2 step 2). The
// LLM must return exactly this shape; it is parsed through the tolerant JSON
// pipeline in json.go before validation.
type Decision struct {
	ThinkAloud     string         `json:"think_aloud"`
	EmotionalState string         `json:"emotional_state"`
	Action         DecisionAction `json:"action"`
	Confidence     float64        `json:"confidence"`
	TaskProgress   int            `json:"task_progress"`
	UXIssues       []UXIssue      `json:"ux_issues,omitempty"`
}

// DecisionAction mirrors domain.Action but is decoded straight off the wire
// before the navigator converts it, keeping the JSON/domain boundary explicit.
type DecisionAction struct {
	Type        string `json:"type"`
	Selector    string `json:"selector,omitempty"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
}

// ToDomain converts the wire action into domain.Action, validating it against
// the per-variant required-field rules in domain.Action.Validate.
func (a DecisionAction) ToDomain() (domain.Action, error) {
	act := domain.Action{
		Type:        domain.ActionType(a.Type),
		Selector:    a.Selector,
		Value:       a.Value,
		Description: a.Description,
	}
	if err := act.Validate(); err != nil {
		return domain.Action{}, err
	}
	return act, nil
}

// UXIssue is a single usability issue surfaced either inline by the Navigator's
// decision step or by the Analyzer's dedicated vision pass.
type UXIssue struct {
	Element     string `json:"element"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	IssueType   string `json:"issue_type"`
}

// AnalysisResult is the output of analyze_screenshot, invoked once per
// distinct page URL in a session (§4.6 Analyzer).
type AnalysisResult struct {
	Issues []UXIssue `json:"issues"`
}

// PersonaSeed is one generated persona profile, part of plan_study's output.
type PersonaSeed struct {
	Name               string   `json:"name"`
	Emoji              string   `json:"emoji,omitempty"`
	TechLiteracy       int      `json:"tech_literacy"`
	Patience           int      `json:"patience"`
	ReadingSpeed       int      `json:"reading_speed"`
	Trust              int      `json:"trust"`
	Goals              []string `json:"goals,omitempty"`
	Frustrations       []string `json:"frustrations,omitempty"`
	AccessibilityNeeds []string `json:"accessibility_needs,omitempty"`
	DevicePreference   string   `json:"device_preference"`
}

// StudyPlan is the output of plan_study: the task list and the persona roster
// to run against them, generated from a bare URL and study goal.
type StudyPlan struct {
	Tasks    []string      `json:"tasks"`
	Personas []PersonaSeed `json:"personas"`
}

// PersonaGeneration is the output of generate_persona when a single
// additional persona is requested for an already-planned study.
type PersonaGeneration struct {
	Persona PersonaSeed `json:"persona"`
}

// StudySynthesis is the output of synthesize_study (§4.6 Synthesizer).
type StudySynthesis struct {
	OverallUXScore          int                     `json:"overall_ux_score"`
	ExecutiveSummary        string                  `json:"executive_summary"`
	UniversalIssues         []string                `json:"universal_issues,omitempty"`
	PersonaSpecificFindings []PersonaFinding         `json:"persona_specific_findings,omitempty"`
	Recommendations         []SynthesisRecommendation `json:"recommendations,omitempty"`
}

// PersonaFinding attributes a synthesis observation to a named persona.
type PersonaFinding struct {
	PersonaName string `json:"persona_name"`
	Finding     string `json:"finding"`
}

// SynthesisRecommendation is one actionable fix proposed by the Synthesizer.
type SynthesisRecommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact,omitempty"`
}

// FixSuggestion is the output of generate_fix_suggestion, used to enrich a
// single prioritized Issue with a concrete remediation.
type FixSuggestion struct {
	Summary    string `json:"summary"`
	Rationale  string `json:"rationale"`
	CodeHint   string `json:"code_hint,omitempty"`
}

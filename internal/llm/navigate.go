package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/usabilitystudio/runtime/internal/domain"
)

var _ Client = (*ClaudeClient)(nil)

const plannerSystemPrompt = `You are a research planner for a usability study. Given a site URL and an
optional study goal, produce a short list of realistic user tasks and a
roster of distinct user personas to run them against. Personas should vary
in tech literacy, patience, trust, and accessibility needs.`

// PlanStudy generates a task list and persona roster for a bare URL.
func (c *ClaudeClient) PlanStudy(ctx context.Context, url, startingPath, goal string) (*StudyPlan, *Usage, error) {
	prompt := fmt.Sprintf("Site: %s\nStarting path: %s\n", url, startingPath)
	if goal != "" {
		prompt += fmt.Sprintf("Study goal: %s\n", goal)
	}
	prompt += `
Return JSON: {"tasks": ["..."], "personas": [{"name","emoji","tech_literacy"(1-10),
"patience"(1-10),"reading_speed"(1-10),"trust"(1-10),"goals":[...],
"frustrations":[...],"accessibility_needs":[...],"device_preference":"desktop|mobile|tablet"}]}`

	var plan StudyPlan
	usage, err := c.completeStructured(ctx, plannerSystemPrompt, []Message{textMessage("user", prompt)}, 0.5, true, &plan)
	if err != nil {
		return nil, usage, err
	}
	return &plan, usage, nil
}

// GeneratePersona generates one additional persona, optionally steered by a hint.
func (c *ClaudeClient) GeneratePersona(ctx context.Context, url, hint string) (*PersonaGeneration, *Usage, error) {
	prompt := fmt.Sprintf("Site: %s\n", url)
	if hint != "" {
		prompt += fmt.Sprintf("Requested persona trait: %s\n", hint)
	}
	prompt += `
Return JSON: {"persona": {"name","emoji","tech_literacy"(1-10),"patience"(1-10),
"reading_speed"(1-10),"trust"(1-10),"goals":[...],"frustrations":[...],
"accessibility_needs":[...],"device_preference":"desktop|mobile|tablet"}}`

	var gen PersonaGeneration
	usage, err := c.completeStructured(ctx, plannerSystemPrompt, []Message{textMessage("user", prompt)}, 0.7, true, &gen)
	if err != nil {
		return nil, usage, err
	}
	return &gen, usage, nil
}

const navigatorSystemPrompt = `You are role-playing as a specific user persona navigating a website to
complete a task, one step at a time. You see only the current screenshot
and a short summary of what you have done so far. At each step think aloud
briefly, report how you feel, and choose exactly one next action.

Action types: click, fill, select, scroll, wait, goto, back, submit, give_up, done.
click/scroll require "selector". fill/select require "selector" and "value".
goto requires "value" (a destination URL). Emit "done" only once the task is
fully complete and set task_progress to 100. Emit "give_up" if you are stuck,
blocked, or see no path forward.

Return JSON: {"think_aloud","emotional_state"(curious|confident|confused|
frustrated|anxious|satisfied|neutral),"action":{"type","selector","value",
"description"},"confidence"(0-1),"task_progress"(0-100),"ux_issues":[{"element",
"description","severity"(critical|major|minor|enhancement),"issue_type"
(ux|accessibility|error|performance)}]}`

// NavigateDecision is the Navigator's decide step (§4.2 step 2): it accepts a
// screenshot and returns a decision parseable by the tolerant JSON pipeline.
func (c *ClaudeClient) NavigateDecision(ctx context.Context, req NavigateDecisionRequest) (*Decision, *Usage, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Persona: %s (tech literacy %d/10, patience %d/10, trust %d/10)\n",
		req.Persona.Name, req.Persona.TechLiteracy, req.Persona.Patience, req.Persona.Trust)
	if len(req.Persona.Goals) > 0 {
		fmt.Fprintf(&sb, "Goals: %s\n", strings.Join(req.Persona.Goals, "; "))
	}
	if len(req.Persona.Frustrations) > 0 {
		fmt.Fprintf(&sb, "Frustrations: %s\n", strings.Join(req.Persona.Frustrations, "; "))
	}
	if len(req.Persona.AccessibilityNeeds) > 0 {
		fmt.Fprintf(&sb, "Accessibility needs: %s\n", strings.Join(req.Persona.AccessibilityNeeds, "; "))
	}
	fmt.Fprintf(&sb, "Task: %s\n\n", req.Task)
	if req.PriorStepsSummary != "" {
		fmt.Fprintf(&sb, "Steps so far: %s\n\n", req.PriorStepsSummary)
	}
	fmt.Fprintf(&sb, "Current page: %s (%q)\n", req.CurrentURL, req.PageTitle)
	fmt.Fprintf(&sb, "Viewport: %dx%d, scroll %d/%d\n", req.ViewportW, req.ViewportH, req.ScrollY, req.MaxScrollY)
	if req.DOMOutline != "" {
		fmt.Fprintf(&sb, "Visible interactive elements:\n%s\n", req.DOMOutline)
	}
	if req.StuckSignal {
		sb.WriteString("\nThe last few actions produced almost no visual change. You may be stuck in a loop; try something different or give up.\n")
	}

	var decision Decision
	usage, err := c.completeStructured(ctx, navigatorSystemPrompt,
		[]Message{visionMessage("user", sb.String(), req.Screenshot)}, 0.4, false, &decision)
	if err != nil {
		return nil, usage, err
	}
	return &decision, usage, nil
}

const analyzerSystemPrompt = `You are a usability analyst reviewing one page of a website from a
screenshot, through the eyes of a specific user persona. Identify concrete UX
issues: confusing layout, unclear affordances, accessibility problems,
broken-looking elements, or anything that would slow or stop this persona.
Do not invent issues that are not visible in the screenshot.

Return JSON: {"issues": [{"element","description","severity"(critical|major|
minor|enhancement),"issue_type"(ux|accessibility|error|performance)}]}`

// AnalyzeScreenshot is the Analyzer's per-URL vision pass (§4.6).
func (c *ClaudeClient) AnalyzeScreenshot(ctx context.Context, req AnalyzeScreenshotRequest) (*AnalysisResult, *Usage, error) {
	prompt := fmt.Sprintf("Page URL: %s\n", req.PageURL)
	if req.PersonaContext != "" {
		prompt += fmt.Sprintf("Persona context: %s\n", req.PersonaContext)
	}

	var result AnalysisResult
	usage, err := c.completeStructured(ctx, analyzerSystemPrompt,
		[]Message{visionMessage("user", prompt, req.Screenshot)}, 0.3, false, &result)
	if err != nil {
		return nil, usage, err
	}
	return &result, usage, nil
}

const synthesizerSystemPrompt = `You are synthesizing the results of a full usability study across multiple
personas and tasks into a single report. Produce an overall UX score
(integer 0-100), a concise executive summary, the issues that are universal
across personas, any persona-specific findings, and prioritized
recommendations.

Return JSON: {"overall_ux_score"(0-100),"executive_summary","universal_issues":
[...],"persona_specific_findings":[{"persona_name","finding"}],
"recommendations":[{"title","description","impact"}]}`

// SynthesizeStudy is the single whole-study synthesis call (§4.6 Synthesizer).
// Pure over its inputs; completeStructured already retries transient
// failures up to 3x, satisfying the "retries on transient failures up to 3x" contract.
func (c *ClaudeClient) SynthesizeStudy(ctx context.Context, req SynthesizeStudyRequest) (*StudySynthesis, *Usage, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Site: %s\n\nTasks:\n", req.StudyURL)
	for _, t := range req.Tasks {
		fmt.Fprintf(&sb, "- %s\n", t)
	}
	sb.WriteString("\nSession summaries:\n")
	for _, s := range req.SessionSummaries {
		fmt.Fprintf(&sb, "- %s\n", s)
	}
	sb.WriteString("\nAll issues found (already deduplicated and prioritized):\n")
	for _, issue := range req.AllIssues {
		fmt.Fprintf(&sb, "- [%s/%s] %s (%s, score %.0f)\n", issue.Severity, issue.IssueType, issue.Description, issue.PageURL, issue.PriorityScore)
	}

	var synthesis StudySynthesis
	usage, err := c.completeStructured(ctx, synthesizerSystemPrompt, []Message{textMessage("user", sb.String())}, 0.4, false, &synthesis)
	if err != nil {
		return nil, usage, err
	}
	return &synthesis, usage, nil
}

const fixSuggestionSystemPrompt = `You propose a concrete, minimal fix for a single usability issue on a
website. Be specific and actionable; prefer CSS/markup/copy changes over
architectural rewrites unless the issue demands it.

Return JSON: {"summary","rationale","code_hint"}`

// GenerateFixSuggestion proposes a remediation for one prioritized issue.
func (c *ClaudeClient) GenerateFixSuggestion(ctx context.Context, issue domain.Issue, pageURL string) (*FixSuggestion, *Usage, error) {
	prompt := fmt.Sprintf("Page: %s\nElement: %s\nSeverity: %s\nIssue: %s\n",
		pageURL, issue.Element, issue.Severity, issue.Description)

	var suggestion FixSuggestion
	usage, err := c.completeStructured(ctx, fixSuggestionSystemPrompt, []Message{textMessage("user", prompt)}, 0.4, true, &suggestion)
	if err != nil {
		return nil, usage, err
	}
	return &suggestion, usage, nil
}

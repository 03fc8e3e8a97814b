package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/usabilitystudio/runtime/internal/domain"
)

// IssueStore is the narrow persistence surface the Prioritizer needs.
type IssueStore interface {
	ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*domain.Issue, error)
	UpdatePriorityScore(ctx context.Context, id uuid.UUID, score float64) error
}

// SessionReader resolves each issue's owning session to its persona and
// gave-up status, per §4.6's scoring formula.
type SessionReader interface {
	ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*domain.Session, error)
}

var landingPageKeywords = []string{"home", "/", "landing"}
var highTrafficKeywords = []string{"signup", "login", "pricing", "checkout", "register"}

// Prioritizer computes §4.6's additive priority_score for every issue in a
// study, grounded on original_source's prioritizer.py.
type Prioritizer struct {
	issues   IssueStore
	sessions SessionReader
	logger   *zap.Logger
}

// NewPrioritizer builds a Prioritizer.
func NewPrioritizer(issues IssueStore, sessions SessionReader, logger *zap.Logger) *Prioritizer {
	return &Prioritizer{issues: issues, sessions: sessions, logger: logger}
}

// PrioritizeStudyIssues scores every issue in the study and returns them
// sorted descending by priority_score, ties broken by created_at ascending.
func (p *Prioritizer) PrioritizeStudyIssues(ctx context.Context, studyID uuid.UUID) ([]*domain.Issue, error) {
	issues, err := p.issues.ListByStudy(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("listing issues for study %s: %w", studyID, err)
	}
	if len(issues) == 0 {
		return nil, nil
	}

	sessions, err := p.sessions.ListByStudy(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions for study %s: %w", studyID, err)
	}
	personaBySession := make(map[uuid.UUID]uuid.UUID, len(sessions))
	gaveUp := make(map[uuid.UUID]bool, len(sessions))
	for _, s := range sessions {
		personaBySession[s.ID] = s.PersonaID
		gaveUp[s.ID] = s.Status == domain.SessionStatusGaveUp
	}

	// Distinct personas per group key: the owning session's persona_id,
	// not the raw session count (§9 Open Question #3).
	personasPerGroup := make(map[string]map[uuid.UUID]bool, len(issues))
	for _, issue := range issues {
		key := issue.GroupKey()
		if personasPerGroup[key] == nil {
			personasPerGroup[key] = make(map[uuid.UUID]bool)
		}
		if personaID, ok := personaBySession[issue.SessionID]; ok {
			personasPerGroup[key][personaID] = true
		}
	}

	for _, issue := range issues {
		score := float64(domain.SeverityBaseScore[issue.Severity])

		distinctPersonas := len(personasPerGroup[issue.GroupKey()])
		if distinctPersonas == 0 {
			distinctPersonas = 1
		}
		score += float64(distinctPersonas) * 20

		if gaveUp[issue.SessionID] {
			score += 50
		}

		url := strings.ToLower(issue.PageURL)
		if containsAny(url, landingPageKeywords) {
			score += 15
		}
		if containsAny(url, highTrafficKeywords) {
			score += 10
		}

		if issue.TimesSeen > 1 {
			recurring := issue.TimesSeen
			if recurring > 5 {
				recurring = 5
			}
			score += float64(recurring) * 5
		}

		if issue.IsRegression {
			score += 30
		}

		issue.PriorityScore = score
		if err := p.issues.UpdatePriorityScore(ctx, issue.ID, score); err != nil {
			p.warnf("updating priority score for issue %s: %v", issue.ID, err)
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].PriorityScore != issues[j].PriorityScore {
			return issues[i].PriorityScore > issues[j].PriorityScore
		}
		return issues[i].CreatedAt.Before(issues[j].CreatedAt)
	})

	return issues, nil
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func (p *Prioritizer) warnf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Sugar().Warnf(format, args...)
	}
}

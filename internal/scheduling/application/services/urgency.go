package services

import (
	"sort"
	"time"

	"github.com/chiefhq/chief/internal/scheduling/domain"
)

// Tier base scores. The gap between adjacent tiers exceeds the maximum
// deadline bonus, so a lower tier can never outscore a higher one.
const (
	baseUrgent = 90.0
	baseHigh   = 70.0
	baseMedium = 40.0
	baseLow    = 20.0

	maxDeadlineBonus = 10.0
)

// UrgencyScorer turns a task's priority tier and deadline proximity into a
// single comparable score.
type UrgencyScorer struct{}

// NewUrgencyScorer creates a scorer.
func NewUrgencyScorer() *UrgencyScorer {
	return &UrgencyScorer{}
}

// Score computes the task's urgency at a point in time. The score is the
// priority tier base plus a deadline bonus in [0, maxDeadlineBonus] that
// grows as the deadline approaches. Tasks without a deadline get no bonus.
func (s *UrgencyScorer) Score(task *domain.Task, now time.Time) float64 {
	base := tierBase(task.Priority())
	deadline := task.Deadline()
	if deadline == nil {
		return base
	}
	return base + deadlineBonus(now, *deadline)
}

// Rank orders tasks by descending score. Ties prefer the shorter task, then
// the lower ID, so the ranking is total and stable across runs.
func (s *UrgencyScorer) Rank(tasks []*domain.Task, now time.Time) []*domain.Task {
	ranked := make([]*domain.Task, len(tasks))
	copy(ranked, tasks)
	scores := make(map[*domain.Task]float64, len(ranked))
	for _, t := range ranked {
		scores[t] = s.Score(t, now)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i]], scores[ranked[j]]
		if si != sj {
			return si > sj
		}
		if ranked[i].Duration() != ranked[j].Duration() {
			return ranked[i].Duration() < ranked[j].Duration()
		}
		return ranked[i].ID().String() < ranked[j].ID().String()
	})
	return ranked
}

func tierBase(p domain.Priority) float64 {
	switch p {
	case domain.PriorityUrgent:
		return baseUrgent
	case domain.PriorityHigh:
		return baseHigh
	case domain.PriorityLow:
		return baseLow
	}
	return baseMedium
}

// deadlineBonus is inversely proportional to the time remaining, saturating
// at the maximum for overdue tasks. A deadline a day away scores half the
// maximum; one a week away is nearly flat.
func deadlineBonus(now, deadline time.Time) float64 {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return maxDeadlineBonus
	}
	days := remaining.Hours() / 24
	return maxDeadlineBonus / (1 + days)
}

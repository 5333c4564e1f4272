package derive

import (
	"sort"
	"strings"
	"time"

	"github.com/gladiators/warstats/internal/config"
	"github.com/gladiators/warstats/internal/models"
	"github.com/gladiators/warstats/internal/warlog"
)

// Policy carries the promotion/demotion constants alongside the week
// boundary they are evaluated against.
type Policy struct {
	Boundary              warlog.Boundary
	PromotionThreshold    int
	PromotionStreakWeeks  int
	JoinedRecentlyWindow  time.Duration
	DemotionPreThreshold  int
	DemotionPostThreshold int
	DemotionWindowBefore  time.Duration
	DemotionWindowAfter   time.Duration
}

func PolicyFromConfig(cfg config.Policy, boundary warlog.Boundary) Policy {
	return Policy{
		Boundary:              boundary,
		PromotionThreshold:    cfg.PromotionThreshold,
		PromotionStreakWeeks:  cfg.PromotionStreakWeeks,
		JoinedRecentlyWindow:  time.Duration(cfg.JoinedRecentlyDays) * 24 * time.Hour,
		DemotionPreThreshold:  cfg.DemotionPreThreshold,
		DemotionPostThreshold: cfg.DemotionPostThreshold,
		DemotionWindowBefore:  time.Duration(cfg.DemotionWindowBeforeHours) * time.Hour,
		DemotionWindowAfter:   time.Duration(cfg.DemotionWindowAfterHours) * time.Hour,
	}
}

type Engine struct {
	policy Policy
}

func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// WeekLabel renders a week key as the civil date shown in column
// headers, in the policy timezone.
func (e *Engine) WeekLabel(weekKey time.Time) string {
	return weekKey.In(e.policy.Boundary.Location).Format("01/02/2006")
}

// PlayerView derives the per-player leaderboard rows from the roster and
// the merged weekly records. It returns the rows plus the ordered week
// labels (most recent first). An empty week list is a normal steady
// state and yields neutral rows.
func (e *Engine) PlayerView(roster []models.Member, weeks []models.WeeklyWarRecord, now time.Time) ([]models.PlayerRow, []string) {
	sorted := make([]models.WeeklyWarRecord, len(weeks))
	copy(sorted, weeks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].WeekKey.After(sorted[j].WeekKey)
	})

	labels := make([]string, len(sorted))
	weekKeys := make([]time.Time, len(sorted))
	for i, wk := range sorted {
		labels[i] = e.WeekLabel(wk.WeekKey)
		weekKeys[i] = wk.WeekKey
	}

	rows := make([]models.PlayerRow, 0, len(roster))
	type rankable struct {
		rowIndex int
		points   int
	}
	var ranked []rankable

	for _, member := range roster {
		row := models.PlayerRow{
			Tag:       member.Tag,
			Name:      member.Name,
			Role:      member.Role,
			Scores:    make(map[string]models.Score, len(sorted)),
			IsCurrent: member.IsCurrent,
		}

		// weekScores holds the per-week score most recent first, for
		// the streak walk below.
		weekScores := make([]models.Score, len(sorted))
		for i, wk := range sorted {
			p, found := findParticipant(wk.Participants, member)
			score := models.KnownScore(0)
			if found {
				if p.WarPoints == nil {
					score = models.MissingScore()
				} else {
					score = models.KnownScore(*p.WarPoints)
				}
			}
			// A player cannot have a score for a week that ended before
			// they joined, even if stale data exists under their tag.
			if member.TenureKnown && !member.FirstSeen.IsZero() && wk.WeekKey.Before(member.FirstSeen) {
				score = models.NotApplicableScore()
			}
			weekScores[i] = score
			row.Scores[labels[i]] = score

			if i == 0 && found {
				row.DecksUsed = p.DecksUsed
				if score.State == models.ScoreKnown {
					ranked = append(ranked, rankable{rowIndex: len(rows), points: score.Points})
				}
			}
		}

		row.PromotionReady = e.promotionReady(member.Role, weekScores)
		row.JoinedRecently = e.joinedRecently(member, now)
		row.DemotionRisk = e.demotionRisk(member.Role, weekKeys, weekScores, now)
		rows = append(rows, row)
	}

	// Standard competition ranking over the latest week: ties share a
	// rank, the next distinct score resumes below the tied block.
	for _, r := range ranked {
		rank := 1
		for _, other := range ranked {
			if other.points > r.points {
				rank++
			}
		}
		rows[r.rowIndex].CurrentRank = rank
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rows[i].CurrentRank, rows[j].CurrentRank
		if (ri > 0) != (rj > 0) {
			return ri > 0
		}
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
	})

	return rows, labels
}

// findParticipant matches by tag when the entry carries one, falling
// back to a case-insensitive name match for manually transcribed rows.
func findParticipant(participants []models.Participant, member models.Member) (models.Participant, bool) {
	for _, p := range participants {
		if p.Tag != "" && p.Tag == member.Tag {
			return p, true
		}
	}
	for _, p := range participants {
		if p.Tag == "" && strings.EqualFold(p.Name, member.Name) {
			return p, true
		}
	}
	return models.Participant{}, false
}

// promotionReady requires every one of the K most recent weeks to meet
// the threshold. A null, not-applicable or below-threshold week breaks
// the streak outright.
func (e *Engine) promotionReady(role models.Role, weekScores []models.Score) bool {
	if role == models.RoleLeader || role == models.RoleCoLeader {
		return false
	}
	k := e.policy.PromotionStreakWeeks
	if k <= 0 || len(weekScores) < k {
		return false
	}
	for i := 0; i < k; i++ {
		s := weekScores[i]
		if s.State != models.ScoreKnown || s.Points < e.policy.PromotionThreshold {
			return false
		}
	}
	return true
}

func (e *Engine) joinedRecently(member models.Member, now time.Time) bool {
	if !member.TenureKnown || member.FirstSeen.IsZero() {
		return false
	}
	since := now.Sub(member.FirstSeen)
	return since >= 0 && since <= e.policy.JoinedRecentlyWindow
}

// demotionRisk is evaluated only inside the checkpoint window around the
// week rollover: a lower bar while the closing week is still running, a
// higher bar once it has finalized. Both windows judge that same week's
// score. After the rollover a record for the new week already exists
// (the live capture opens it within minutes), so the week under
// judgment is selected by key, never by recency.
func (e *Engine) demotionRisk(role models.Role, weekKeys []time.Time, weekScores []models.Score, now time.Time) bool {
	if role != models.RoleMember && role != models.RoleElder {
		return false
	}

	upcoming := e.policy.Boundary.Next(now)
	previous := upcoming.AddDate(0, 0, -7)

	var judged time.Time
	var threshold int
	switch {
	case !now.Before(upcoming.Add(-e.policy.DemotionWindowBefore)) && now.Before(upcoming):
		judged, threshold = upcoming, e.policy.DemotionPreThreshold
	case !now.Before(previous) && now.Before(previous.Add(e.policy.DemotionWindowAfter)):
		judged, threshold = previous, e.policy.DemotionPostThreshold
	default:
		return false
	}

	for i, key := range weekKeys {
		if !key.Equal(judged) {
			continue
		}
		s := weekScores[i]
		return s.State == models.ScoreKnown && s.Points < threshold
	}
	return false
}

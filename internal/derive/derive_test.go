package derive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladiators/warstats/internal/models"
	"github.com/gladiators/warstats/internal/warlog"
)

func testPolicy() Policy {
	return Policy{
		Boundary: warlog.Boundary{
			Weekday:  time.Monday,
			Hour:     4,
			Minute:   30,
			Location: time.UTC,
		},
		PromotionThreshold:    1600,
		PromotionStreakWeeks:  3,
		JoinedRecentlyWindow:  7 * 24 * time.Hour,
		DemotionPreThreshold:  1400,
		DemotionPostThreshold: 1600,
		DemotionWindowBefore:  12 * time.Hour,
		DemotionWindowAfter:   12 * time.Hour,
	}
}

// midWeek is a Wednesday, outside both demotion checkpoint windows.
var midWeek = time.Date(2026, 1, 21, 12, 0, 0, 0, time.UTC)

func member(tag, name string, role models.Role) models.Member {
	return models.Member{Tag: tag, Name: name, Role: role, IsCurrent: true}
}

func week(day int, participants ...models.Participant) models.WeeklyWarRecord {
	return models.WeeklyWarRecord{
		WeekKey:      time.Date(2026, 1, day, 4, 30, 0, 0, time.UTC),
		Participants: participants,
	}
}

func scored(tag string, points int) models.Participant {
	return models.Participant{Tag: tag, WarPoints: &points}
}

func nullScored(tag string) models.Participant {
	return models.Participant{Tag: tag}
}

func rowByTag(t *testing.T, rows []models.PlayerRow, tag string) models.PlayerRow {
	t.Helper()
	for _, r := range rows {
		if r.Tag == tag {
			return r
		}
	}
	t.Fatalf("row %s not found", tag)
	return models.PlayerRow{}
}

func TestPlayerView_CompetitionRanking(t *testing.T) {
	e := NewEngine(testPolicy())
	roster := []models.Member{
		member("#A", "Alpha", models.RoleMember),
		member("#B", "Beta", models.RoleMember),
		member("#C", "Gamma", models.RoleMember),
		member("#D", "Delta", models.RoleMember),
	}
	weeks := []models.WeeklyWarRecord{
		week(19, scored("#A", 1800), scored("#B", 1800), scored("#C", 1500), nullScored("#D")),
	}

	rows, labels := e.PlayerView(roster, weeks, midWeek)

	require.Equal(t, []string{"01/19/2026"}, labels)
	assert.Equal(t, 1, rowByTag(t, rows, "#A").CurrentRank)
	assert.Equal(t, 1, rowByTag(t, rows, "#B").CurrentRank)
	// The tied block at rank 1 has two entries, so the next rank is 3.
	assert.Equal(t, 3, rowByTag(t, rows, "#C").CurrentRank)
	// A null score for the latest week leaves the player unranked.
	assert.Equal(t, 0, rowByTag(t, rows, "#D").CurrentRank)

	// Ranked rows come first, then unranked alphabetically.
	assert.Equal(t, "#D", rows[len(rows)-1].Tag)
}

func TestPlayerView_NonParticipantScoresZero(t *testing.T) {
	e := NewEngine(testPolicy())
	roster := []models.Member{member("#A", "Alpha", models.RoleMember)}
	weeks := []models.WeeklyWarRecord{week(19, scored("#B", 900))}

	rows, _ := e.PlayerView(roster, weeks, midWeek)

	score := rows[0].Scores["01/19/2026"]
	assert.Equal(t, models.ScoreKnown, score.State)
	assert.Equal(t, 0, score.Points)
	// A zero is still a recorded score, so the player is ranked.
	assert.Equal(t, 1, rows[0].CurrentRank)
}

func TestPlayerView_NullScoreStaysNull(t *testing.T) {
	e := NewEngine(testPolicy())
	roster := []models.Member{member("#A", "Alpha", models.RoleMember)}
	weeks := []models.WeeklyWarRecord{week(19, nullScored("#A"))}

	rows, _ := e.PlayerView(roster, weeks, midWeek)

	assert.Equal(t, models.ScoreMissing, rows[0].Scores["01/19/2026"].State)
	assert.Equal(t, 0, rows[0].CurrentRank)
}

func TestPlayerView_WeeksBeforeJoinAreNotApplicable(t *testing.T) {
	e := NewEngine(testPolicy())
	joined := member("#A", "Alpha", models.RoleMember)
	joined.FirstSeen = time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)
	joined.TenureKnown = true

	weeks := []models.WeeklyWarRecord{
		week(19, scored("#A", 1200)),
		// Stale data under the same tag from before the player joined.
		week(12, scored("#A", 800)),
	}

	rows, _ := e.PlayerView([]models.Member{joined}, weeks, midWeek)

	assert.Equal(t, models.ScoreKnown, rows[0].Scores["01/19/2026"].State)
	assert.Equal(t, models.ScoreNotApplicable, rows[0].Scores["01/12/2026"].State)
}

func TestPlayerView_UnknownTenureNeverBackfillsNA(t *testing.T) {
	e := NewEngine(testPolicy())
	seeded := member("#A", "Alpha", models.RoleMember)
	seeded.FirstSeen = time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)
	seeded.TenureKnown = false

	weeks := []models.WeeklyWarRecord{week(12, scored("#A", 800))}

	rows, _ := e.PlayerView([]models.Member{seeded}, weeks, midWeek)

	// First-run roster members have unknown tenure; their history stands.
	assert.Equal(t, models.ScoreKnown, rows[0].Scores["01/12/2026"].State)
}

func TestPlayerView_NameMatchForManualRows(t *testing.T) {
	e := NewEngine(testPolicy())
	roster := []models.Member{member("#A", "GladiatorMax", models.RoleMember)}
	weeks := []models.WeeklyWarRecord{
		week(19, models.Participant{Name: "gladiatormax", WarPoints: intPtr(777)}),
	}

	rows, _ := e.PlayerView(roster, weeks, midWeek)

	score := rows[0].Scores["01/19/2026"]
	assert.Equal(t, models.ScoreKnown, score.State)
	assert.Equal(t, 777, score.Points)
}

func TestPlayerView_EmptyWeeksAreNeutral(t *testing.T) {
	e := NewEngine(testPolicy())
	roster := []models.Member{member("#A", "Alpha", models.RoleMember)}

	rows, labels := e.PlayerView(roster, nil, midWeek)

	assert.Empty(t, labels)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Scores)
	assert.Equal(t, 0, rows[0].CurrentRank)
	assert.False(t, rows[0].PromotionReady)
	assert.False(t, rows[0].DemotionRisk)
}

func TestPromotionReady(t *testing.T) {
	e := NewEngine(testPolicy())

	tests := []struct {
		name   string
		role   models.Role
		scores []models.Score
		want   bool
	}{
		{
			name:   "three qualifying weeks",
			role:   models.RoleMember,
			scores: []models.Score{models.KnownScore(1700), models.KnownScore(1600), models.KnownScore(2000)},
			want:   true,
		},
		{
			name:   "below threshold breaks the streak",
			role:   models.RoleMember,
			scores: []models.Score{models.KnownScore(1700), models.KnownScore(1599), models.KnownScore(2000)},
			want:   false,
		},
		{
			name:   "null breaks the streak",
			role:   models.RoleMember,
			scores: []models.Score{models.KnownScore(1700), models.MissingScore(), models.KnownScore(2000)},
			want:   false,
		},
		{
			name:   "not applicable breaks the streak",
			role:   models.RoleMember,
			scores: []models.Score{models.KnownScore(1700), models.KnownScore(1800), models.NotApplicableScore()},
			want:   false,
		},
		{
			name:   "short history never qualifies",
			role:   models.RoleMember,
			scores: []models.Score{models.KnownScore(1700), models.KnownScore(1800)},
			want:   false,
		},
		{
			name:   "only the most recent K weeks count",
			role:   models.RoleElder,
			scores: []models.Score{models.KnownScore(1700), models.KnownScore(1600), models.KnownScore(2000), models.KnownScore(100)},
			want:   true,
		},
		{
			name:   "leaders are never flagged",
			role:   models.RoleLeader,
			scores: []models.Score{models.KnownScore(1700), models.KnownScore(1600), models.KnownScore(2000)},
			want:   false,
		},
		{
			name:   "co-leaders are never flagged",
			role:   models.RoleCoLeader,
			scores: []models.Score{models.KnownScore(1700), models.KnownScore(1600), models.KnownScore(2000)},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.promotionReady(tt.role, tt.scores))
		})
	}
}

func TestJoinedRecently(t *testing.T) {
	e := NewEngine(testPolicy())
	now := midWeek

	fresh := member("#A", "Alpha", models.RoleMember)
	fresh.TenureKnown = true
	fresh.FirstSeen = now.Add(-3 * 24 * time.Hour)
	assert.True(t, e.joinedRecently(fresh, now))

	old := fresh
	old.FirstSeen = now.Add(-10 * 24 * time.Hour)
	assert.False(t, e.joinedRecently(old, now))

	seeded := fresh
	seeded.TenureKnown = false
	assert.False(t, e.joinedRecently(seeded, now), "seeded members are not new joiners")
}

func TestDemotionRisk(t *testing.T) {
	e := NewEngine(testPolicy())
	// The boundary after midWeek is Monday 2026-01-26 04:30 UTC.
	boundary := time.Date(2026, 1, 26, 4, 30, 0, 0, time.UTC)
	closed := boundary.AddDate(0, 0, -7)

	preWindow := boundary.Add(-6 * time.Hour)
	postWindow := closed.Add(6 * time.Hour)

	tests := []struct {
		name   string
		role   models.Role
		keys   []time.Time
		scores []models.Score
		now    time.Time
		want   bool
	}{
		{"below pre bar inside pre window", models.RoleMember, []time.Time{boundary}, []models.Score{models.KnownScore(1399)}, preWindow, true},
		{"at pre bar inside pre window", models.RoleMember, []time.Time{boundary}, []models.Score{models.KnownScore(1400)}, preWindow, false},
		{"between bars inside post window", models.RoleElder, []time.Time{closed}, []models.Score{models.KnownScore(1500)}, postWindow, true},
		{"at post bar inside post window", models.RoleElder, []time.Time{closed}, []models.Score{models.KnownScore(1600)}, postWindow, false},
		{"low score outside any window", models.RoleMember, []time.Time{boundary}, []models.Score{models.KnownScore(100)}, midWeek, false},
		{"null score never flags", models.RoleMember, []time.Time{boundary}, []models.Score{models.MissingScore()}, preWindow, false},
		{"no record for the judged week", models.RoleMember, []time.Time{boundary.AddDate(0, 0, 7)}, []models.Score{models.KnownScore(0)}, postWindow, false},
		{"leaders exempt", models.RoleLeader, []time.Time{boundary}, []models.Score{models.KnownScore(0)}, preWindow, false},
		{"co-leaders exempt", models.RoleCoLeader, []time.Time{boundary}, []models.Score{models.KnownScore(0)}, preWindow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.demotionRisk(tt.role, tt.keys, tt.scores, tt.now))
		})
	}
}

func TestPlayerView_PostWindowJudgesClosedWeek(t *testing.T) {
	e := NewEngine(testPolicy())
	// Half an hour after the Monday 04:30 rollover. The live capture has
	// already opened the new week with a near-zero score.
	now := time.Date(2026, 1, 26, 5, 0, 0, 0, time.UTC)
	roster := []models.Member{member("#A", "Alpha", models.RoleMember)}
	newWeek := models.WeeklyWarRecord{
		WeekKey:      time.Date(2026, 2, 2, 4, 30, 0, 0, time.UTC),
		Participants: []models.Participant{scored("#A", 50)},
	}

	t.Run("strong closed week is not flagged", func(t *testing.T) {
		weeks := []models.WeeklyWarRecord{week(26, scored("#A", 1700)), newWeek}
		rows, _ := e.PlayerView(roster, weeks, now)
		assert.False(t, rows[0].DemotionRisk, "the closed week's 1700 clears the post bar")
	})

	t.Run("weak closed week is flagged", func(t *testing.T) {
		weeks := []models.WeeklyWarRecord{week(26, scored("#A", 1500)), newWeek}
		rows, _ := e.PlayerView(roster, weeks, now)
		assert.True(t, rows[0].DemotionRisk)
	})
}

func TestWeekLabel_UsesPolicyTimezone(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	p := testPolicy()
	p.Boundary.Location = chicago
	e := NewEngine(p)

	// Monday 04:30 Chicago stored as UTC still renders as the Monday date.
	key := time.Date(2026, 1, 19, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "01/19/2026", e.WeekLabel(key))
}

func intPtr(v int) *int { return &v }

package warlog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gladiators/warstats/internal/models"
)

// HistoryStore is the persisted weekly ledger the merger reads and
// rewrites. The merger is the sole writer.
type HistoryStore interface {
	LoadWarHistory() []models.WeeklyWarRecord
	SaveWarHistory(items []models.WeeklyWarRecord) error
}

type Merger struct {
	store    HistoryStore
	boundary Boundary
	maxWeeks int
}

func NewMerger(store HistoryStore, boundary Boundary, maxWeeks int) *Merger {
	return &Merger{store: store, boundary: boundary, maxWeeks: maxWeeks}
}

// Convert turns raw upstream records into canonical weekly records:
// participants normalized, week keys resolved against the boundary.
func (m *Merger) Convert(raws []models.RawWarRecord, now time.Time) []models.WeeklyWarRecord {
	out := make([]models.WeeklyWarRecord, 0, len(raws))
	for _, raw := range raws {
		rec := models.WeeklyWarRecord{
			WeekKey:      m.boundary.ResolveWeekKey(raw, now),
			Participants: NormalizeParticipants(rawParticipants(raw)),
		}
		if raw.SeasonID > 0 {
			rec.Label = fmt.Sprintf("Season %d", raw.SeasonID)
		}
		out = append(out, rec)
	}
	return out
}

// Merge folds a freshly fetched batch into the persisted history,
// deduplicates by week key, collapses same-calendar-date duplicates,
// trims to the retention window and persists the result. The returned
// slice is sorted most recent first.
func (m *Merger) Merge(batch []models.WeeklyWarRecord) ([]models.WeeklyWarRecord, error) {
	byKey := make(map[string]models.WeeklyWarRecord)
	fold := func(rec models.WeeklyWarRecord) {
		key := WeekKeyString(rec.WeekKey)
		if existing, ok := byKey[key]; ok {
			byKey[key] = MergeRecords(existing, rec)
		} else {
			byKey[key] = rec
		}
	}
	for _, rec := range m.store.LoadWarHistory() {
		fold(rec)
	}
	for _, rec := range batch {
		fold(rec)
	}

	// Two records can land on the same civil date with different label
	// completeness (a manual import vs a bare API date). Fold those too,
	// keeping the richer label's identity.
	byDate := make(map[string]models.WeeklyWarRecord)
	for _, rec := range byKey {
		date := rec.WeekKey.In(m.boundary.Location).Format("2006-01-02")
		if existing, ok := byDate[date]; ok {
			byDate[date] = foldSameDate(existing, rec)
		} else {
			byDate[date] = rec
		}
	}

	merged := make([]models.WeeklyWarRecord, 0, len(byDate))
	for _, rec := range byDate {
		merged = append(merged, rec)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].WeekKey.After(merged[j].WeekKey)
	})
	if m.maxWeeks > 0 && len(merged) > m.maxWeeks {
		merged = merged[:m.maxWeeks]
	}

	if err := m.store.SaveWarHistory(merged); err != nil {
		return nil, fmt.Errorf("persisting war history: %w", err)
	}
	return merged, nil
}

// MergeRecords merges two records observed for the same week key. The
// result is independent of argument order.
func MergeRecords(a, b models.WeeklyWarRecord) models.WeeklyWarRecord {
	return models.WeeklyWarRecord{
		WeekKey:      a.WeekKey,
		Label:        betterLabel(a.Label, b.Label),
		Participants: mergeParticipants(a.Participants, b.Participants),
	}
}

func foldSameDate(a, b models.WeeklyWarRecord) models.WeeklyWarRecord {
	keep := a
	if len(b.Label) > len(a.Label) {
		keep = b
	} else if len(b.Label) == len(a.Label) && b.WeekKey.After(a.WeekKey) {
		keep = b
	}
	return models.WeeklyWarRecord{
		WeekKey:      keep.WeekKey,
		Label:        betterLabel(a.Label, b.Label),
		Participants: mergeParticipants(a.Participants, b.Participants),
	}
}

// betterLabel prefers the more descriptive label. A season identifier
// beats a bare date string.
func betterLabel(a, b string) string {
	if len(b) > len(a) {
		return b
	}
	if len(b) == len(a) && b > a {
		return b
	}
	return a
}

func participantKey(p models.Participant) string {
	if p.Tag != "" {
		return p.Tag
	}
	return strings.ToLower(p.Name)
}

func mergeParticipants(a, b []models.Participant) []models.Participant {
	merged := make(map[string]models.Participant, len(a)+len(b))
	for _, list := range [][]models.Participant{a, b} {
		for _, p := range list {
			key := participantKey(p)
			if existing, ok := merged[key]; ok {
				merged[key] = reconcileParticipant(existing, p)
			} else {
				merged[key] = p
			}
		}
	}

	out := make([]models.Participant, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := scoreOf(out[i]), scoreOf(out[j])
		if si != sj {
			return si > sj
		}
		return participantKey(out[i]) < participantKey(out[j])
	})
	return out
}

// reconcileParticipant merges two sightings of the same player within a
// week. The higher score wins as the base record, but a higher deck
// count from the losing side is grafted in: a superseding snapshot can
// lag on completed battles due to capture timing.
func reconcileParticipant(x, y models.Participant) models.Participant {
	base, other := x, y
	if scoreOf(y) > scoreOf(x) || (scoreOf(y) == scoreOf(x) && preferOnTie(y, x)) {
		base, other = y, x
	}
	out := base
	if decksOf(other) > decksOf(base) {
		out.DecksUsed = other.DecksUsed
	}
	// Sightings can disagree on rank; keep the best placement so the
	// result is the same no matter how many sightings fold, and in what
	// order.
	if r := other.Rank; r != nil && (out.Rank == nil || *r < *out.Rank) {
		out.Rank = r
	}
	return out
}

// scoreOf treats a null score as below any recorded score, including a
// recorded zero.
func scoreOf(p models.Participant) int {
	if p.WarPoints == nil {
		return -1
	}
	return *p.WarPoints
}

func decksOf(p models.Participant) int {
	if p.DecksUsed == nil {
		return -1
	}
	return *p.DecksUsed
}

// preferOnTie makes the equal-score base pick deterministic regardless
// of merge order.
func preferOnTie(y, x models.Participant) bool {
	if (y.Tag != "") != (x.Tag != "") {
		return y.Tag != ""
	}
	if len(y.Name) != len(x.Name) {
		return len(y.Name) > len(x.Name)
	}
	return y.Name > x.Name
}

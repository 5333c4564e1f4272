// Command importwar loads a manually transcribed war week CSV into the
// local history store. The sheet carries two weeks side by side: the
// current war and the prior one, each as rank/points/decks columns, with
// "n/a" marking cells that have no data. Rows are identified by display
// name; tags are resolved against the member ledger with a fuzzy match
// so transcription typos still land on the right player.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/gladiators/warstats/internal/config"
	"github.com/gladiators/warstats/internal/models"
	"github.com/gladiators/warstats/internal/store"
	"github.com/gladiators/warstats/internal/warlog"
)

// Transcribed names may be slightly off; allow a small edit distance
// before giving up on a tag match.
const maxNameDistance = 3

var dateRangeRe = regexp.MustCompile(`(?i)(\d{1,2}/\d{1,2})\s+through\s+(\d{1,2}/\d{1,2})`)

func main() {
	if err := run(); err != nil {
		slog.Error("Import failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	input := flag.String("input", "manual-war.csv", "path to the transcribed war CSV")
	year := flag.Int("year", time.Now().Year(), "calendar year the sheet's dates belong to")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file loaded", "error", err)
	}

	cfg, err := config.New()
	if err != nil {
		return err
	}
	boundary, err := warlog.NewBoundary(cfg.Policy)
	if err != nil {
		return err
	}

	f, err := os.Open(*input)
	if err != nil {
		return fmt.Errorf("opening %s: %w", *input, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("parsing %s: %w", *input, err)
	}
	if len(rows) < 3 {
		return fmt.Errorf("not enough data rows in %s", *input)
	}

	st := store.New(cfg.History.DataDir)
	resolver := newTagResolver(st.LoadMemberHistory().Items)

	records, err := parseManualCSV(rows, *year, boundary, resolver)
	if err != nil {
		return err
	}

	merger := warlog.NewMerger(st, boundary, cfg.History.MaxWeeks)
	merged, err := merger.Merge(records)
	if err != nil {
		return err
	}

	slog.Info("Manual war history imported", "imported", len(records), "totalWeeks", len(merged))
	return nil
}

type dateRange struct {
	start, end time.Time
}

func parseManualCSV(rows [][]string, year int, boundary warlog.Boundary, resolver *tagResolver) ([]models.WeeklyWarRecord, error) {
	currentRange, err := parseDateRange(cell(rows[0], 1), year, boundary)
	if err != nil {
		return nil, fmt.Errorf("current week dates: %w", err)
	}
	priorRange, err := parseDateRange(cell(rows[0], 4), year, boundary)
	if err != nil {
		return nil, fmt.Errorf("prior week dates: %w", err)
	}

	current := models.WeeklyWarRecord{
		WeekKey: currentRange.end,
		Label:   weekLabel(cell(rows[1], 1), currentRange),
	}
	prior := models.WeeklyWarRecord{
		WeekKey: priorRange.end,
		Label:   weekLabel(cell(rows[1], 4), priorRange),
	}

	for _, row := range rows[2:] {
		name := strings.TrimSpace(cell(row, 0))
		if name == "" {
			continue
		}
		tag := resolver.resolve(name)

		if p, ok := participantFromCells(name, tag, row, 1); ok {
			current.Participants = append(current.Participants, p)
		}
		if p, ok := participantFromCells(name, tag, row, 4); ok {
			prior.Participants = append(prior.Participants, p)
		}
	}

	return []models.WeeklyWarRecord{current, prior}, nil
}

// participantFromCells reads rank/points/decks starting at col. A row
// with all three cells empty means the player sat that week out.
func participantFromCells(name, tag string, row []string, col int) (models.Participant, bool) {
	rank := parseCell(cell(row, col))
	points := parseCell(cell(row, col+1))
	decks := parseCell(cell(row, col+2))
	if rank == nil && points == nil && decks == nil {
		return models.Participant{}, false
	}
	return models.Participant{
		Tag:       tag,
		Name:      name,
		WarPoints: points,
		DecksUsed: decks,
		Rank:      rank,
	}, true
}

// parseCell turns a transcribed cell into a value; empty and "n/a" both
// mean no data.
func parseCell(raw string) *int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "n/a") {
		return nil
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil
	}
	return &n
}

// parseDateRange reads a "1/8 through 1/11" header cell, pinning both
// ends to the boundary time-of-day in the policy timezone.
func parseDateRange(raw string, year int, b warlog.Boundary) (dateRange, error) {
	m := dateRangeRe.FindStringSubmatch(raw)
	if m == nil {
		return dateRange{}, fmt.Errorf("no date range in %q", raw)
	}
	start, err := parseMonthDay(m[1], year, b)
	if err != nil {
		return dateRange{}, err
	}
	end, err := parseMonthDay(m[2], year, b)
	if err != nil {
		return dateRange{}, err
	}
	return dateRange{start: start, end: end}, nil
}

func parseMonthDay(raw string, year int, b warlog.Boundary) (time.Time, error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("bad date %q", raw)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("bad month in %q", raw)
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("bad day in %q", raw)
	}
	return time.Date(year, time.Month(month), day, b.Hour, b.Minute, 0, 0, b.Location), nil
}

// weekLabel combines the sheet's header label ("Rank (Training Week 2)")
// with the resolved date range.
func weekLabel(header string, r dateRange) string {
	label := strings.TrimSpace(header)
	label = strings.TrimPrefix(label, "Rank (")
	label = strings.TrimSuffix(label, ")")
	return fmt.Sprintf("%s (%s-%s)", label, r.start.Format("1/2/2006"), r.end.Format("1/2/2006"))
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

type tagResolver struct {
	names []string
	byKey map[string]string
}

func newTagResolver(items []models.MemberHistoryEntry) *tagResolver {
	r := &tagResolver{byKey: make(map[string]string, len(items))}
	for _, item := range items {
		if item.Name == "" {
			continue
		}
		key := strings.ToLower(item.Name)
		if _, exists := r.byKey[key]; exists {
			continue
		}
		r.names = append(r.names, item.Name)
		r.byKey[key] = item.Tag
	}
	return r
}

// resolve maps a transcribed name to a member tag: exact fold match
// first, then the closest fuzzy match within the distance limit. An
// unresolvable name stays name-identified and merges by name downstream.
func (r *tagResolver) resolve(name string) string {
	if tag, ok := r.byKey[strings.ToLower(name)]; ok {
		return tag
	}

	ranks := fuzzy.RankFindNormalizedFold(name, r.names)
	best := fuzzy.Rank{Distance: maxNameDistance + 1}
	for _, rank := range ranks {
		if rank.Distance < best.Distance {
			best = rank
		}
	}
	if best.Distance > maxNameDistance {
		slog.Warn("No member match for transcribed name", "name", name)
		return ""
	}
	return r.byKey[strings.ToLower(best.Target)]
}

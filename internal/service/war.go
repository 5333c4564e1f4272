package service

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gladiators/warstats/internal/api/clash"
	"github.com/gladiators/warstats/internal/derive"
	"github.com/gladiators/warstats/internal/models"
	"github.com/gladiators/warstats/internal/repository/memory"
	"github.com/gladiators/warstats/internal/store"
	"github.com/gladiators/warstats/internal/warlog"
)

// WarService runs the reconciliation pipeline: fetch, normalize, resolve
// week keys, merge, persist, then publish a fresh snapshot. One cycle is
// one logical transaction; a failed cycle leaves the previous snapshot
// and persisted state untouched.
type WarService struct {
	api      *clash.API
	store    *store.Store
	merger   *warlog.Merger
	engine   *derive.Engine
	repo     *memory.Repository
	boundary warlog.Boundary
	maxWeeks int

	refreshMu       sync.Mutex
	warLogAvailable atomic.Bool

	now func() time.Time
}

func NewWarService(api *clash.API, st *store.Store, merger *warlog.Merger, engine *derive.Engine, repo *memory.Repository, boundary warlog.Boundary, maxWeeks int) *WarService {
	return &WarService{
		api:      api,
		store:    st,
		merger:   merger,
		engine:   engine,
		repo:     repo,
		boundary: boundary,
		maxWeeks: maxWeeks,
		now:      time.Now,
	}
}

// Refresh runs one full pipeline cycle. A cycle that starts while a
// previous one is still in flight is a no-op; the scheduler's next tick
// picks up the work.
func (s *WarService) Refresh() error {
	if !s.refreshMu.TryLock() {
		slog.Info("Refresh already in flight, skipping cycle")
		return nil
	}
	defer s.refreshMu.Unlock()

	cycle := uuid.NewString()[:8]
	now := s.now()
	slog.Info("Starting refresh cycle", "cycle", cycle)

	if s.api.DemoMode() {
		return s.refreshDemo(cycle, now)
	}

	previous := s.repo.Latest()

	var current, all []models.Member
	clanData, err := s.api.GetClan()
	if err != nil {
		slog.Warn("Cache refresh failed for members", "cycle", cycle, "error", err)
		if previous != nil {
			current, all = previous.Members, previous.AllMembers
		}
	} else {
		current = s.attachMemberHistory(clanData.MemberList, now)
		all = s.withFormerMembers(current)
	}

	raws, err := s.api.GetWarLog()
	available := err == nil
	if err != nil {
		if !clash.IsEndpointDisabled(err) {
			return fmt.Errorf("refreshing war log: %w", err)
		}
		slog.Info("War log endpoint disabled, substituting live race snapshot", "cycle", cycle)
		race, raceErr := s.api.GetCurrentRiverRace()
		if raceErr != nil {
			return fmt.Errorf("refreshing river race fallback: %w", raceErr)
		}
		raws = []models.RawWarRecord{riverRaceRecord(race)}
	}

	weeks, err := s.merger.Merge(s.merger.Convert(raws, now))
	if err != nil {
		return fmt.Errorf("merging war log: %w", err)
	}

	s.warLogAvailable.Store(available)
	s.repo.Publish(&models.Snapshot{
		Members:         current,
		AllMembers:      all,
		Weeks:           weeks,
		WarLogAvailable: available,
		RefreshedAt:     now,
	})
	slog.Info("Refresh cycle complete", "cycle", cycle, "weeks", len(weeks), "members", len(current))
	return nil
}

func (s *WarService) refreshDemo(cycle string, now time.Time) error {
	members := membersFromRaw(clash.DemoMembers())
	weeks, err := s.merger.Merge(s.merger.Convert(clash.DemoWarLog(now), now))
	if err != nil {
		return fmt.Errorf("merging demo war log: %w", err)
	}
	s.warLogAvailable.Store(true)
	s.repo.Publish(&models.Snapshot{
		Members:         members,
		AllMembers:      members,
		Weeks:           weeks,
		WarLogAvailable: true,
		RefreshedAt:     now,
	})
	slog.Info("Refresh cycle complete (demo mode)", "cycle", cycle, "weeks", len(weeks))
	return nil
}

// attachMemberHistory enriches the fetched roster with the persisted
// first-seen ledger. FirstSeen is set once and never overwritten; on the
// very first run tenure is unknown for the whole existing roster rather
// than "joined today".
func (s *WarService) attachMemberHistory(fetched []models.RawMember, now time.Time) []models.Member {
	ledger := s.store.LoadMemberHistory()
	byTag := make(map[string]models.MemberHistoryEntry, len(ledger.Items))
	for _, item := range ledger.Items {
		byTag[item.Tag] = item
	}

	isFirstRun := len(ledger.Items) == 0 && ledger.SeededAt == nil
	seededAt := ledger.SeededAt
	if isFirstRun {
		seededAt = &now
	}

	enriched := make([]models.Member, 0, len(fetched))
	for _, raw := range fetched {
		firstSeen := now
		tenureKnown := !isFirstRun
		if existing, ok := byTag[raw.Tag]; ok {
			firstSeen = existing.FirstSeen
			tenureKnown = existing.TenureKnown
		}
		byTag[raw.Tag] = models.MemberHistoryEntry{
			Tag:         raw.Tag,
			Name:        raw.Name,
			Role:        parseRole(raw.Role),
			FirstSeen:   firstSeen,
			LastSeen:    now,
			TenureKnown: tenureKnown,
		}
		enriched = append(enriched, models.Member{
			Tag:         raw.Tag,
			Name:        raw.Name,
			Role:        parseRole(raw.Role),
			FirstSeen:   firstSeen,
			TenureKnown: tenureKnown,
			IsCurrent:   true,
		})
	}

	items := make([]models.MemberHistoryEntry, 0, len(byTag))
	for _, item := range byTag {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Tag < items[j].Tag })
	if err := s.store.SaveMemberHistory(models.MemberLedger{SeededAt: seededAt, Items: items}); err != nil {
		slog.Warn("Failed to save member history", "error", err)
	}

	return enriched
}

// withFormerMembers appends ledger entries that have dropped off the
// live roster. Former members are retained for tenure reporting, never
// deleted.
func (s *WarService) withFormerMembers(current []models.Member) []models.Member {
	currentTags := make(map[string]bool, len(current))
	for _, m := range current {
		currentTags[m.Tag] = true
	}

	all := append([]models.Member(nil), current...)
	for _, item := range s.store.LoadMemberHistory().Items {
		if currentTags[item.Tag] {
			continue
		}
		name := item.Name
		if name == "" {
			name = item.Tag
		}
		role := item.Role
		if role == "" {
			role = models.RoleMember
		}
		all = append(all, models.Member{
			Tag:         item.Tag,
			Name:        name,
			Role:        role,
			FirstSeen:   item.FirstSeen,
			TenureKnown: item.TenureKnown,
			IsCurrent:   false,
		})
	}
	return all
}

// FetchMembers returns the roster from the latest snapshot, demo data
// before the first refresh completes.
func (s *WarService) FetchMembers(includeFormer bool) []models.Member {
	snap := s.repo.Latest()
	if snap == nil {
		return membersFromRaw(clash.DemoMembers())
	}
	if includeFormer {
		return snap.AllMembers
	}
	return snap.Members
}

// MergedWeeks returns up to maxWeeks merged weekly records, most recent
// first.
func (s *WarService) MergedWeeks(maxWeeks int) []models.WeeklyWarRecord {
	snap := s.repo.Latest()
	if snap == nil {
		return nil
	}
	weeks := snap.Weeks
	if maxWeeks > 0 && len(weeks) > maxWeeks {
		weeks = weeks[:maxWeeks]
	}
	return weeks
}

// PlayerView derives the leaderboard rows over the latest snapshot.
func (s *WarService) PlayerView(maxWeeks int) ([]models.PlayerRow, []string) {
	snap := s.repo.Latest()
	if snap == nil {
		return nil, nil
	}
	return s.engine.PlayerView(snap.Members, s.MergedWeeks(maxWeeks), s.now())
}

func (s *WarService) WarLogAvailable() bool {
	return s.warLogAvailable.Load()
}

func (s *WarService) LastRefreshed() time.Time {
	if snap := s.repo.Latest(); snap != nil {
		return snap.RefreshedAt
	}
	return time.Time{}
}

// CaptureCurrentWeek folds the live race into the persisted history so
// weeks accumulate locally even while the historical endpoint is down.
// It does not touch the published snapshot.
func (s *WarService) CaptureCurrentWeek() error {
	if s.api.DemoMode() {
		return nil
	}
	race, err := s.api.GetCurrentRiverRace()
	if err != nil {
		return fmt.Errorf("capturing current river race: %w", err)
	}
	_, err = s.merger.Merge(s.merger.Convert([]models.RawWarRecord{riverRaceRecord(race)}, s.now()))
	return err
}

// CaptureRolloverSnapshot samples the live race minute by minute around
// the week boundary. When the upstream resets fame to zero the last
// non-zero sample is pinned as preReset, preserving the final standings
// of the closing week.
func (s *WarService) CaptureRolloverSnapshot() error {
	if s.api.DemoMode() {
		return nil
	}

	now := s.now()
	aligned := s.boundary.Align(now)
	diff := aligned.Sub(now)
	if diff > 5*time.Minute || diff < -time.Minute {
		return nil
	}

	race, err := s.api.GetCurrentRiverRace()
	if err != nil {
		return fmt.Errorf("snapshot capture: %w", err)
	}

	participants := warlog.NormalizeParticipants(race.Clan.Participants)
	totalFame := 0
	for _, p := range participants {
		if p.WarPoints != nil {
			totalFame += *p.WarPoints
		}
	}

	file := s.store.LoadSnapshots()
	key := warlog.WeekKeyString(aligned)
	wk := file.Weeks[key]
	if wk == nil {
		wk = &models.WeekSnapshots{}
		file.Weeks[key] = wk
	}

	wk.Samples = append(wk.Samples, models.SnapshotSample{
		Timestamp:    now,
		TotalFame:    totalFame,
		Participants: participants,
	})

	if totalFame == 0 && len(wk.Samples) >= 2 {
		if prev := wk.Samples[len(wk.Samples)-2]; prev.TotalFame > 0 {
			wk.PreReset = &prev
		}
	}

	return s.store.SaveSnapshots(file)
}

// CheckWarLogAvailability probes the historical endpoint and folds any
// returned entries into the history. Transitions are logged so operators
// can tell when the upstream flips the endpoint back on.
func (s *WarService) CheckWarLogAvailability() error {
	if s.api.DemoMode() {
		return nil
	}

	raws, err := s.api.GetWarLog()
	if err != nil {
		if s.warLogAvailable.Swap(false) {
			slog.Warn("War log endpoint appears unavailable, will keep checking")
		}
		return nil
	}

	if !s.warLogAvailable.Swap(true) {
		slog.Info("War log endpoint is available again")
	}
	_, err = s.merger.Merge(s.merger.Convert(raws, s.now()))
	return err
}

func riverRaceRecord(race *models.RiverRaceResponse) models.RawWarRecord {
	return models.RawWarRecord{
		State:        race.State,
		Participants: race.Clan.Participants,
	}
}

func membersFromRaw(raws []models.RawMember) []models.Member {
	out := make([]models.Member, 0, len(raws))
	for _, raw := range raws {
		out = append(out, models.Member{
			Tag:       raw.Tag,
			Name:      raw.Name,
			Role:      parseRole(raw.Role),
			IsCurrent: true,
		})
	}
	return out
}

func parseRole(role string) models.Role {
	switch role {
	case "leader":
		return models.RoleLeader
	case "coLeader", "co-leader":
		return models.RoleCoLeader
	case "elder", "admin":
		return models.RoleElder
	default:
		return models.RoleMember
	}
}

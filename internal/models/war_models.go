package models

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleMember   Role = "member"
	RoleElder    Role = "elder"
	RoleCoLeader Role = "coLeader"
	RoleLeader   Role = "leader"
)

// Member is a clan member, current or former. Tag is the identity key;
// names are mutable display strings and may collide.
type Member struct {
	Tag         string    `json:"tag"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	FirstSeen   time.Time `json:"firstSeen"`
	TenureKnown bool      `json:"tenureKnown"`
	IsCurrent   bool      `json:"isCurrent"`
}

// MemberHistoryEntry is the persisted per-tag record. FirstSeen is set once
// on first observation and never overwritten.
type MemberHistoryEntry struct {
	Tag         string    `json:"tag"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	FirstSeen   time.Time `json:"firstSeen"`
	LastSeen    time.Time `json:"lastSeen"`
	TenureKnown bool      `json:"tenureKnown"`
}

// MemberLedger is the whole-document shape of the member history file.
// SeededAt marks the first run, when tenure for the existing roster is
// unknown rather than "joined today".
type MemberLedger struct {
	SeededAt *time.Time           `json:"seededAt"`
	Items    []MemberHistoryEntry `json:"items"`
}

// Participant is a canonical per-player entry within a weekly record.
// A nil WarPoints means the upstream reported no data for the week, which
// is distinct from a recorded zero.
type Participant struct {
	Tag       string `json:"tag,omitempty"`
	Name      string `json:"name,omitempty"`
	WarPoints *int   `json:"warPoints"`
	DecksUsed *int   `json:"decksUsed"`
	Rank      *int   `json:"rank,omitempty"`
}

// WeeklyWarRecord holds one tracked week. WeekKey is the canonical
// week-ending instant and is the merge identity.
type WeeklyWarRecord struct {
	WeekKey      time.Time     `json:"weekKey"`
	Label        string        `json:"label,omitempty"`
	Participants []Participant `json:"participants"`
}

// ScoreState distinguishes a recorded number from "no data" and from
// "not applicable" (the week predates the player's membership).
type ScoreState int

const (
	ScoreMissing ScoreState = iota
	ScoreKnown
	ScoreNotApplicable
)

type Score struct {
	State  ScoreState
	Points int
}

func KnownScore(points int) Score { return Score{State: ScoreKnown, Points: points} }
func MissingScore() Score         { return Score{State: ScoreMissing} }
func NotApplicableScore() Score   { return Score{State: ScoreNotApplicable} }

func (s Score) MarshalJSON() ([]byte, error) {
	switch s.State {
	case ScoreKnown:
		return json.Marshal(s.Points)
	case ScoreNotApplicable:
		return []byte(`"N/A"`), nil
	default:
		return []byte("null"), nil
	}
}

// PlayerRow is the derived per-player view consumed by the presentation
// layer. Scores maps week label to a tri-state score. CurrentRank is zero
// when the player is unranked for the latest week.
type PlayerRow struct {
	Tag            string           `json:"tag"`
	Name           string           `json:"name"`
	Role           Role             `json:"role"`
	Scores         map[string]Score `json:"scores"`
	CurrentRank    int              `json:"currentRank,omitempty"`
	PromotionReady bool             `json:"promotionReady"`
	JoinedRecently bool             `json:"joinedRecently"`
	DemotionRisk   bool             `json:"demotionRisk"`
	DecksUsed      *int             `json:"decksUsed,omitempty"`
	IsCurrent      bool             `json:"isCurrent"`
}

// SnapshotSample is one observation of the live race, captured around the
// week rollover to survive the upstream fame reset.
type SnapshotSample struct {
	Timestamp    time.Time     `json:"timestamp"`
	TotalFame    int           `json:"totalFame"`
	Participants []Participant `json:"participants"`
}

type WeekSnapshots struct {
	Samples  []SnapshotSample `json:"samples"`
	PreReset *SnapshotSample  `json:"preReset"`
}

type SnapshotFile struct {
	Weeks map[string]*WeekSnapshots `json:"weeks"`
}

// Snapshot is the immutable published view of one completed refresh cycle.
type Snapshot struct {
	Members         []Member          `json:"members"`
	AllMembers      []Member          `json:"allMembers"`
	Weeks           []WeeklyWarRecord `json:"weeks"`
	WarLogAvailable bool              `json:"warLogAvailable"`
	RefreshedAt     time.Time         `json:"refreshedAt"`
}

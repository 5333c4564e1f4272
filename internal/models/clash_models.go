package models

import "encoding/json"

// OptInt records whether a numeric field was present in the upstream
// document and whether it was null. The distinction matters: an explicit
// null war-points value means "no data recorded", while an absent field
// falls through the normalizer's accessor chain.
type OptInt struct {
	Set   bool
	Valid bool
	Value int
}

func (o *OptInt) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Valid = false
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

func (o OptInt) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Int returns an OptInt carrying a value, for tests and demo data.
func Int(v int) OptInt { return OptInt{Set: true, Valid: true, Value: v} }

// NullInt returns an OptInt for a field that was present but null.
func NullInt() OptInt { return OptInt{Set: true} }

type ClanResponse struct {
	Tag        string      `json:"tag"`
	Name       string      `json:"name"`
	MemberList []RawMember `json:"memberList"`
}

type RawMember struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// RawWarRecord is one upstream war log entry. The upstream shape drifts:
// historical entries carry standings and season identifiers, live river
// race conversions carry participants and ISO dates.
type RawWarRecord struct {
	SeasonID     int              `json:"seasonId,omitempty"`
	CreatedDate  string           `json:"createdDate,omitempty"`
	EndDate      string           `json:"endDate,omitempty"`
	State        string           `json:"state,omitempty"`
	Participants []RawParticipant `json:"participants,omitempty"`
	Standings    []RawParticipant `json:"standings,omitempty"`
}

// RawParticipant mirrors the upstream field soup. Historical entries use
// warPoints, live race snapshots use fame, older seasons only report
// battle counts.
type RawParticipant struct {
	Tag           string `json:"tag"`
	Name          string `json:"name"`
	WarPoints     OptInt `json:"warPoints"`
	Fame          OptInt `json:"fame"`
	BattlesPlayed OptInt `json:"battlesPlayed"`
	Wins          OptInt `json:"wins"`
	DecksUsed     OptInt `json:"decksUsed"`
}

type RiverRaceResponse struct {
	State string        `json:"state"`
	Clan  RiverRaceClan `json:"clan"`
}

type RiverRaceClan struct {
	Tag          string           `json:"tag"`
	Name         string           `json:"name"`
	Participants []RawParticipant `json:"participants"`
}

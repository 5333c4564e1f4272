package warlog

import "github.com/gladiators/warstats/internal/models"

// The upstream names its point and deck fields differently depending on
// the endpoint and season. Each canonical field resolves through an
// ordered accessor chain, first present value wins.

type accessor func(models.RawParticipant) models.OptInt

var warPointsChain = []accessor{
	func(p models.RawParticipant) models.OptInt { return p.WarPoints },
	func(p models.RawParticipant) models.OptInt { return p.Fame },
	func(p models.RawParticipant) models.OptInt { return p.BattlesPlayed },
	func(p models.RawParticipant) models.OptInt { return p.Wins },
}

var decksUsedChain = []accessor{
	func(p models.RawParticipant) models.OptInt { return p.DecksUsed },
	func(p models.RawParticipant) models.OptInt { return p.BattlesPlayed },
}

// resolveWarPoints walks the chain. An explicit null on the primary
// war-points field is preserved as nil: the upstream reported "no data",
// which must not collapse into zero.
func resolveWarPoints(raw models.RawParticipant) *int {
	for i, get := range warPointsChain {
		v := get(raw)
		if !v.Set {
			continue
		}
		if !v.Valid {
			if i == 0 {
				return nil
			}
			continue
		}
		points := v.Value
		return &points
	}
	zero := 0
	return &zero
}

func resolveDecksUsed(raw models.RawParticipant) *int {
	for _, get := range decksUsedChain {
		v := get(raw)
		if v.Set && v.Valid {
			decks := v.Value
			return &decks
		}
	}
	zero := 0
	return &zero
}

// NormalizeParticipant maps one raw upstream record into the canonical
// shape. It never fails: malformed input degrades to defaults.
func NormalizeParticipant(raw models.RawParticipant) models.Participant {
	return models.Participant{
		Tag:       raw.Tag,
		Name:      raw.Name,
		WarPoints: resolveWarPoints(raw),
		DecksUsed: resolveDecksUsed(raw),
	}
}

func NormalizeParticipants(raws []models.RawParticipant) []models.Participant {
	out := make([]models.Participant, 0, len(raws))
	for _, raw := range raws {
		out = append(out, NormalizeParticipant(raw))
	}
	return out
}

// rawParticipants picks whichever participant list the upstream shape
// carries. Historical entries use standings, live conversions use
// participants.
func rawParticipants(rec models.RawWarRecord) []models.RawParticipant {
	if len(rec.Participants) > 0 {
		return rec.Participants
	}
	return rec.Standings
}

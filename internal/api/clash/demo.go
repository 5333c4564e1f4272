package clash

import (
	"math/rand"
	"time"

	"github.com/gladiators/warstats/internal/models"
)

// Demo data lets the app run end to end without an API key.

func DemoMembers() []models.RawMember {
	return []models.RawMember{
		{Tag: "#DEMO001", Name: "GladiatorMax", Role: "leader"},
		{Tag: "#DEMO002", Name: "WarriorKing", Role: "coLeader"},
		{Tag: "#DEMO003", Name: "BattleMaster", Role: "elder"},
		{Tag: "#DEMO004", Name: "ChampionElite", Role: "elder"},
		{Tag: "#DEMO005", Name: "SpartanWarrior", Role: "member"},
		{Tag: "#DEMO006", Name: "ArenaLegend", Role: "member"},
		{Tag: "#DEMO007", Name: "TrophyHunter", Role: "member"},
		{Tag: "#DEMO008", Name: "ClashVeteran", Role: "member"},
		{Tag: "#DEMO009", Name: "RoyalGuard", Role: "member"},
		{Tag: "#DEMO010", Name: "EliteFighter", Role: "member"},
	}
}

// DemoWarLog fabricates ten weeks of war data ending on Mondays at
// 04:30, oldest first to match the upstream ordering. A few players sit
// out each week so zero scores show up in the table.
func DemoWarLog(now time.Time) []models.RawWarRecord {
	members := DemoMembers()

	daysUntilMonday := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	monday := now.AddDate(0, 0, daysUntilMonday)
	monday = time.Date(monday.Year(), monday.Month(), monday.Day(), 4, 30, 0, 0, now.Location())

	weeks := make([]models.RawWarRecord, 0, 10)
	for week := 0; week < 10; week++ {
		shuffled := make([]models.RawMember, len(members))
		copy(shuffled, members)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		count := 6 + rand.Intn(4)
		participants := make([]models.RawParticipant, 0, count)
		for i := 0; i < count; i++ {
			participants = append(participants, models.RawParticipant{
				Tag:       shuffled[i].Tag,
				Name:      shuffled[i].Name,
				WarPoints: models.Int(100 + rand.Intn(400)),
				DecksUsed: models.Int(1 + rand.Intn(16)),
			})
		}

		warDate := monday.AddDate(0, 0, -7*week).Format(time.RFC3339)
		weeks = append(weeks, models.RawWarRecord{
			CreatedDate:  warDate,
			EndDate:      warDate,
			Participants: participants,
		})
	}

	for i, j := 0, len(weeks)-1; i < j; i, j = i+1, j-1 {
		weeks[i], weeks[j] = weeks[j], weeks[i]
	}
	return weeks
}

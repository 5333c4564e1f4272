package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   Server
	ClashAPI ClashAPI
	History  History
	Policy   Policy
	Refresh  Refresh
}

type Server struct {
	Port          int    `envconfig:"PORT" default:"3000"`
	StaticDir     string `envconfig:"STATIC_DIR" default:"public"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"*"`
}

type ClashAPI struct {
	APIKey  string `envconfig:"CLASH_ROYALE_API_KEY"`
	ClanTag string `envconfig:"CLAN_TAG" default:"2CPPJLJ"`
}

type History struct {
	DataDir  string `envconfig:"DATA_DIR" default:"data"`
	MaxWeeks int    `envconfig:"HISTORY_MAX_WEEKS" default:"260"`
}

// Policy holds the week-boundary and promotion/demotion constants. Wars
// finalize on a fixed weekday at a fixed civil time in the reference
// timezone; everything downstream keys off that instant.
type Policy struct {
	Timezone                  string `envconfig:"WAR_TIMEZONE" default:"America/Chicago"`
	BoundaryWeekday           int    `envconfig:"WAR_BOUNDARY_WEEKDAY" default:"1"`
	BoundaryHour              int    `envconfig:"WAR_BOUNDARY_HOUR" default:"4"`
	BoundaryMinute            int    `envconfig:"WAR_BOUNDARY_MINUTE" default:"30"`
	PromotionThreshold        int    `envconfig:"PROMOTION_THRESHOLD" default:"1600"`
	PromotionStreakWeeks      int    `envconfig:"PROMOTION_STREAK_WEEKS" default:"12"`
	JoinedRecentlyDays        int    `envconfig:"JOINED_RECENTLY_DAYS" default:"7"`
	DemotionPreThreshold      int    `envconfig:"DEMOTION_PRE_THRESHOLD" default:"1400"`
	DemotionPostThreshold     int    `envconfig:"DEMOTION_POST_THRESHOLD" default:"1600"`
	DemotionWindowBeforeHours int    `envconfig:"DEMOTION_WINDOW_BEFORE_HOURS" default:"12"`
	DemotionWindowAfterHours  int    `envconfig:"DEMOTION_WINDOW_AFTER_HOURS" default:"12"`
}

// Refresh cron specs are evaluated in the policy timezone, so firing
// aligns to round wall-clock boundaries rather than process start time.
type Refresh struct {
	RefreshCron          string `envconfig:"REFRESH_CRON" default:"*/5 * * * *"`
	CaptureCron          string `envconfig:"CAPTURE_CRON" default:"0 * * * *"`
	WarLogCheckCron      string `envconfig:"WARLOG_CHECK_CRON" default:"30 9 * * *"`
	RolloverSnapshotCron string `envconfig:"ROLLOVER_SNAPSHOT_CRON" default:"25-31 4 * * 1"`
}

func New() (*Config, error) {
	var c Config
	err := envconfig.Process("", &c)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Location loads the policy timezone.
func (p Policy) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading war timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

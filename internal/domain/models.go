package domain

import (
	"time"
)

// Sport is a canonical sport key, e.g. "basketball_nba". The set of valid
// keys is fixed by configuration at startup.
type Sport string

func (s Sport) String() string {
	return string(s)
}

type Game struct {
	ID        string
	Sport     Sport
	HomeTeam  string
	AwayTeam  string
	HomeScore int
	AwayScore int
	PlayedAt  time.Time
	Margin    int // victory margin when the feed reports one; 0 means derive from scores
}

// VictoryMargin returns the reported margin, falling back to the absolute
// score difference.
func (g Game) VictoryMargin() int {
	if g.Margin > 0 {
		return g.Margin
	}
	diff := g.HomeScore - g.AwayScore
	if diff < 0 {
		diff = -diff
	}
	return diff
}

// HomeOutcome scores the game from the home side: 1 win, 0.5 draw, 0 loss.
func (g Game) HomeOutcome() float64 {
	switch {
	case g.HomeScore > g.AwayScore:
		return 1
	case g.HomeScore < g.AwayScore:
		return 0
	default:
		return 0.5
	}
}

type RatingRecord struct {
	Sport               Sport
	Team                string
	Rating              float64
	GamesPlayed         int
	LastUpdated         time.Time
	LastProcessedGameID string
	CreatedAt           time.Time
}

type TeamStat struct {
	Sport      Sport
	Team       string
	Metric     string
	Value      float64
	SampleSize int
	Opponents  []string // one entry per sampled game, duplicates preserved
	UpdatedAt  time.Time
}

type AdjustedMetric struct {
	ID         string // nanoid
	Sport      Sport
	Team       string
	Metric     string
	Value      float64
	Factor     float64 // strength-of-schedule factor applied to the raw value
	SampleSize int
	ComputedAt time.Time
}

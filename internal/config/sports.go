package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"sports-ratings/internal/domain"
)

// SportSettings holds the per-sport tuning knobs. HomeAdvantage is a rating
// offset added to the home side inside the expectation only; MarginOfVictory
// scales the K-factor symmetrically for both teams.
type SportSettings struct {
	KFactor         float64  `koanf:"k_factor"`
	HomeAdvantage   float64  `koanf:"home_advantage"`
	MarginOfVictory bool     `koanf:"margin_of_victory"`
	Aliases         []string `koanf:"aliases"`
	Metrics         []string `koanf:"metrics"` // empty means every reported metric is tracked
}

// SportsConfig is the closed sport table plus the shared rating knobs. It is
// loaded once at startup and never mutated afterwards.
type SportsConfig struct {
	DefaultRating float64                  `koanf:"default_rating"`
	MinSampleSize int                      `koanf:"min_sample_size"`
	FactorMin     float64                  `koanf:"factor_min"`
	FactorMax     float64                  `koanf:"factor_max"`
	Sports        map[string]SportSettings `koanf:"sports"`

	aliases map[string]domain.Sport
	keys    []domain.Sport
}

// DefaultSports returns the built-in sport table. LoadSports layers file and
// environment overrides on top of it.
func DefaultSports() *SportsConfig {
	cfg := &SportsConfig{
		DefaultRating: 1500.0,
		MinSampleSize: 3,
		FactorMin:     0.5,
		FactorMax:     2.0,
		Sports: map[string]SportSettings{
			"basketball_nba": {
				KFactor: 20,
				Aliases: []string{"nba", "basketball"},
				Metrics: []string{"points_per_game", "points_allowed_per_game"},
			},
			"americanfootball_nfl": {
				KFactor:         24,
				HomeAdvantage:   48,
				MarginOfVictory: true,
				Aliases:         []string{"nfl"},
				Metrics:         []string{"points_per_game", "yards_per_play"},
			},
			"soccer_epl": {
				KFactor: 18,
				Aliases: []string{"epl", "soccer"},
				Metrics: []string{"goals_per_game", "shots_on_target_per_game"},
			},
			"icehockey_nhl": {
				KFactor: 16,
				Aliases: []string{"nhl", "hockey"},
				Metrics: []string{"goals_per_game", "save_pct"},
			},
		},
	}
	if err := cfg.build(); err != nil {
		// the built-in table is static and must always index cleanly
		panic(err)
	}
	return cfg
}

// NewSportsConfig builds a validated sport table from explicit values,
// bypassing file and environment layering.
func NewSportsConfig(defaultRating float64, minSampleSize int, factorMin, factorMax float64, sports map[string]SportSettings) (*SportsConfig, error) {
	cfg := &SportsConfig{
		DefaultRating: defaultRating,
		MinSampleSize: minSampleSize,
		FactorMin:     factorMin,
		FactorMax:     factorMax,
		Sports:        sports,
	}
	if err := cfg.build(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSports builds the sport table by layering, low to high:
//  1. built-in defaults
//  2. YAML file named by SPORTS_CONFIG, if set
//  3. environment variables with the RATINGS_ prefix (flat keys only,
//     e.g. RATINGS_MIN_SAMPLE_SIZE -> min_sample_size)
func LoadSports(cfg *Config, logger zerolog.Logger) (*SportsConfig, error) {
	k := koanf.New(".")

	if cfg.SportsConfigPath != "" {
		if err := k.Load(file.Provider(cfg.SportsConfigPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load sports config file: %w", err)
		}
	}

	envProvider := env.Provider("RATINGS_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "ratings_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load sports config from environment: %w", err)
	}

	sports := DefaultSports()
	if err := k.UnmarshalWithConf("", sports, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sports config: %w", err)
	}

	if err := sports.build(); err != nil {
		return nil, err
	}

	logger.Info().
		Int("sports", len(sports.Sports)).
		Float64("default_rating", sports.DefaultRating).
		Int("min_sample_size", sports.MinSampleSize).
		Float64("factor_min", sports.FactorMin).
		Float64("factor_max", sports.FactorMax).
		Strs("keys", sportKeyStrings(sports.keys)).
		Msg("sports configuration loaded")

	return sports, nil
}

// build validates the table and indexes aliases. Called once per load; the
// table is read-only afterwards.
func (c *SportsConfig) build() error {
	if c.DefaultRating <= 0 {
		return fmt.Errorf("default_rating must be positive, got %v", c.DefaultRating)
	}
	if c.MinSampleSize < 0 {
		return fmt.Errorf("min_sample_size must not be negative, got %d", c.MinSampleSize)
	}
	if c.FactorMin <= 0 || c.FactorMax < c.FactorMin {
		return fmt.Errorf("invalid adjustment bounds [%v, %v]", c.FactorMin, c.FactorMax)
	}
	if len(c.Sports) == 0 {
		return fmt.Errorf("at least one sport must be configured")
	}

	normalized := make(map[string]SportSettings, len(c.Sports))
	for key, settings := range c.Sports {
		nk := strings.ToLower(strings.TrimSpace(key))
		if nk == "" {
			return fmt.Errorf("sport key must not be empty")
		}
		if _, ok := normalized[nk]; ok {
			return fmt.Errorf("duplicate sport key %q", key)
		}
		if settings.KFactor <= 0 {
			return fmt.Errorf("sport %s: k_factor must be positive, got %v", nk, settings.KFactor)
		}
		if settings.HomeAdvantage < 0 {
			return fmt.Errorf("sport %s: home_advantage must not be negative, got %v", nk, settings.HomeAdvantage)
		}
		normalized[nk] = settings
	}
	c.Sports = normalized

	c.aliases = make(map[string]domain.Sport, len(normalized)*2)
	c.keys = make([]domain.Sport, 0, len(normalized))
	for key, settings := range normalized {
		c.keys = append(c.keys, domain.Sport(key))
		for _, alias := range settings.Aliases {
			a := strings.ToLower(strings.TrimSpace(alias))
			if a == "" || a == key {
				continue
			}
			if _, ok := normalized[a]; ok {
				return fmt.Errorf("alias %q of sport %s collides with a sport key", alias, key)
			}
			if existing, ok := c.aliases[a]; ok && existing != domain.Sport(key) {
				return fmt.Errorf("alias %q claimed by both %s and %s", alias, existing, key)
			}
			c.aliases[a] = domain.Sport(key)
		}
	}
	sort.Slice(c.keys, func(i, j int) bool { return c.keys[i] < c.keys[j] })
	return nil
}

// Resolve maps a caller-supplied sport name, canonical or alias, onto its
// canonical key.
func (c *SportsConfig) Resolve(name string) (domain.Sport, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if _, ok := c.Sports[normalized]; ok {
		return domain.Sport(normalized), nil
	}
	if sport, ok := c.aliases[normalized]; ok {
		return sport, nil
	}
	return "", &domain.UnsupportedSportError{Sport: name}
}

// Settings returns the tuning knobs for a canonical sport key.
func (c *SportsConfig) Settings(sport domain.Sport) (SportSettings, error) {
	settings, ok := c.Sports[sport.String()]
	if !ok {
		return SportSettings{}, &domain.UnsupportedSportError{Sport: sport.String()}
	}
	return settings, nil
}

// SportKeys returns the canonical keys in sorted order.
func (c *SportsConfig) SportKeys() []domain.Sport {
	keys := make([]domain.Sport, len(c.keys))
	copy(keys, c.keys)
	return keys
}

// Clamp bounds an adjustment factor to the configured range.
func (c *SportsConfig) Clamp(factor float64) float64 {
	if factor < c.FactorMin {
		return c.FactorMin
	}
	if factor > c.FactorMax {
		return c.FactorMax
	}
	return factor
}

// TracksMetric reports whether a sport adjusts the named metric. An empty
// metric list tracks everything.
func (s SportSettings) TracksMetric(name string) bool {
	if len(s.Metrics) == 0 {
		return true
	}
	for _, m := range s.Metrics {
		if m == name {
			return true
		}
	}
	return false
}

func sportKeyStrings(keys []domain.Sport) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

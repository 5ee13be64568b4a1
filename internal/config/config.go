package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/messmate/pgmess-backend/internal/logger"
	"github.com/messmate/pgmess-backend/internal/types"
)

// MealRule is the ordering policy for one meal: the price charged and
// the cut-off offset from the target date's midnight. A negative offset
// means the window closes on the previous day (breakfast closes 21:00
// the evening before, i.e. -3h).
type MealRule struct {
	Cutoff time.Duration
	Price  int
}

type Config struct {
	Meals       map[types.Meal]MealRule
	HorizonDays int

	ExtractorTimeout time.Duration

	HistoryMaxLines int
	HistoryTTL      time.Duration
}

func Default() *Config {
	return &Config{
		Meals: map[types.Meal]MealRule{
			types.MealBreakfast: {Cutoff: -3 * time.Hour, Price: 40},
			types.MealLunch:     {Cutoff: 9 * time.Hour, Price: 70},
			types.MealDinner:    {Cutoff: 16 * time.Hour, Price: 40},
		},
		HorizonDays:      7,
		ExtractorTimeout: 30 * time.Second,
		HistoryMaxLines:  20,
		HistoryTTL:       24 * time.Hour,
	}
}

func (c *Config) Prices() map[types.Meal]int {
	out := make(map[types.Meal]int, len(c.Meals))
	for meal, rule := range c.Meals {
		out[meal] = rule.Price
	}
	return out
}

func (c *Config) Cutoffs() map[types.Meal]time.Duration {
	out := make(map[types.Meal]time.Duration, len(c.Meals))
	for meal, rule := range c.Meals {
		out[meal] = rule.Cutoff
	}
	return out
}

type yamlMealRule struct {
	Cutoff string `yaml:"cutoff"`
	Price  *int   `yaml:"price"`
}

type yamlConfig struct {
	Meals       map[string]yamlMealRule `yaml:"meals"`
	HorizonDays *int                    `yaml:"horizon_days"`
	Extractor   struct {
		TimeoutSeconds *int `yaml:"timeout_seconds"`
	} `yaml:"extractor"`
	History struct {
		MaxLines *int `yaml:"max_lines"`
		TTLHours *int `yaml:"ttl_hours"`
	} `yaml:"history"`
}

// Load reads the meal policy file at path, falling back to compiled
// defaults for anything the file leaves out. An empty path returns the
// defaults unchanged.
func Load(path string, log *logger.Logger) (*Config, error) {
	cfg := Default()
	if path == "" {
		if log != nil {
			log.Info("No meal config path set, using defaults")
		}
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read meal config %s: %w", path, err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return nil, fmt.Errorf("parse meal config %s: %w", path, err)
	}

	for name, rule := range yc.Meals {
		meal := types.Meal(name)
		if !meal.Valid() {
			return nil, fmt.Errorf("meal config: unknown meal %q", name)
		}
		merged := cfg.Meals[meal]
		if rule.Cutoff != "" {
			d, err := time.ParseDuration(rule.Cutoff)
			if err != nil {
				return nil, fmt.Errorf("meal config: bad cutoff for %s: %w", name, err)
			}
			merged.Cutoff = d
		}
		if rule.Price != nil {
			if *rule.Price < 0 {
				return nil, fmt.Errorf("meal config: negative price for %s", name)
			}
			merged.Price = *rule.Price
		}
		cfg.Meals[meal] = merged
	}

	if yc.HorizonDays != nil {
		if *yc.HorizonDays < 1 {
			return nil, fmt.Errorf("meal config: horizon_days must be at least 1")
		}
		cfg.HorizonDays = *yc.HorizonDays
	}
	if yc.Extractor.TimeoutSeconds != nil && *yc.Extractor.TimeoutSeconds > 0 {
		cfg.ExtractorTimeout = time.Duration(*yc.Extractor.TimeoutSeconds) * time.Second
	}
	if yc.History.MaxLines != nil && *yc.History.MaxLines > 0 {
		cfg.HistoryMaxLines = *yc.History.MaxLines
	}
	if yc.History.TTLHours != nil && *yc.History.TTLHours > 0 {
		cfg.HistoryTTL = time.Duration(*yc.History.TTLHours) * time.Hour
	}

	if log != nil {
		log.Info("Meal config loaded", "path", path, "horizon_days", cfg.HorizonDays)
	}
	return cfg, nil
}

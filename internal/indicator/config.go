package indicator

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Config specifies a single indicator to compute.
type Config struct {
	Type   string `json:"type" yaml:"type"` // "SMA", "EMA", "SMMA", "RSI"
	Period int    `json:"period" yaml:"period"`
}

// Name is the line identifier, e.g. "SMA_20".
func (c Config) Name() string { return c.Type + "_" + strconv.Itoa(c.Period) }

// DefaultConfigs is the indicator set shown on a fresh chart.
func DefaultConfigs() []Config {
	return []Config{
		{Type: "SMA", Period: 20},
		{Type: "EMA", Period: 50},
	}
}

// ParseSpecs parses "TYPE:PERIOD,..." into []Config.
// Example: "SMA:20,EMA:50,RSI:14". Returns defaults if input is empty or
// nothing valid could be parsed.
func ParseSpecs(s string) []Config {
	if strings.TrimSpace(s) == "" {
		return DefaultConfigs()
	}

	var configs []Config
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		tokens := strings.SplitN(part, ":", 2)
		if len(tokens) != 2 {
			continue
		}
		typ := strings.ToUpper(strings.TrimSpace(tokens[0]))
		period, err := strconv.Atoi(strings.TrimSpace(tokens[1]))
		if err != nil || period <= 0 {
			slog.Warn("skipping invalid indicator spec", slog.String("spec", part))
			continue
		}
		configs = append(configs, Config{Type: typ, Period: period})
	}
	if len(configs) == 0 {
		slog.Warn("no valid indicators parsed, using defaults", slog.String("input", s))
		return DefaultConfigs()
	}
	return configs
}

// Validate checks an indicator set for unknown types, bad periods and duplicates.
func Validate(configs []Config) error {
	seen := make(map[string]bool, len(configs))
	for _, c := range configs {
		if _, ok := New(c.Type, 1); !ok {
			return fmt.Errorf("unknown indicator type %q", c.Type)
		}
		if c.Period <= 0 {
			return fmt.Errorf("invalid period=%d for %s", c.Period, c.Type)
		}
		if seen[c.Name()] {
			return fmt.Errorf("duplicate indicator %s", c.Name())
		}
		seen[c.Name()] = true
	}
	return nil
}

// setsEqual checks if two config slices hold the same indicators in the same order.
func setsEqual(a, b []Config) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

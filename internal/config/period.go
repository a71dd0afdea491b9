package config

import (
	"fmt"
	"strings"
	"time"
)

var periodUnits = map[string]time.Duration{
	"second":  time.Second,
	"seconds": time.Second,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
}

// ParsePeriod accepts a unit name (second, minute, hour, day and their
// plurals) or any positive Go duration such as "250ms" or "5m".
func ParsePeriod(value string) (time.Duration, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	if key == "" {
		return 0, fmt.Errorf("gate period is required")
	}
	if d, ok := periodUnits[key]; ok {
		return d, nil
	}
	d, err := time.ParseDuration(key)
	if err != nil {
		return 0, fmt.Errorf("invalid gate period %q: use second, minute, hour, day, or a duration", value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("gate period must be positive: %q", value)
	}
	return d, nil
}

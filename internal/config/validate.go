package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	var errs []error
	if _, err := ParsePeriod(c.Gate.Period); err != nil {
		errs = append(errs, err)
	}
	if c.Gate.Limit <= 0 {
		errs = append(errs, fmt.Errorf("gate limit must be positive, got %d", c.Gate.Limit))
	}
	if c.Gate.MaxWait < 0 {
		errs = append(errs, fmt.Errorf("gate max_wait must not be negative, got %s", c.Gate.MaxWait))
	}

	endpoint := strings.TrimSpace(c.Transport.Endpoint)
	if endpoint == "" {
		errs = append(errs, errors.New("transport endpoint is required"))
	} else if parsed, err := url.Parse(endpoint); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("transport endpoint %q is not an absolute URL", endpoint))
	}
	if c.Transport.Timeout < 0 {
		errs = append(errs, errors.New("transport timeout must not be negative"))
	}

	if c.Inbound.Enabled {
		if c.Inbound.Rate <= 0 {
			errs = append(errs, errors.New("inbound rate must be positive when enabled"))
		}
		if c.Inbound.Burst <= 0 {
			errs = append(errs, errors.New("inbound burst must be positive when enabled"))
		}
	}

	return errors.Join(errs...)
}

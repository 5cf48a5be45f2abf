package config

import (
	"errors"
	"fmt"
	"strings"

	"clearspace/core"
)

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}

	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}

	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}

	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	switch s.Adapter {
	case "memory", "redis", "sql":
	case "file":
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	default:
		errs = append(errs, "adapter must be one of: memory, redis, sql, file")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "level must be one of: debug, info, warn, error")
	}

	switch l.Format {
	case "json", "text":
	default:
		errs = append(errs, "format must be one of: json, text")
	}

	switch l.Output {
	case "stdout", "stderr":
	default:
		errs = append(errs, "output must be one of: stdout, stderr")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates webhook configuration
func (w *WebhookConfig) Validate() error {
	var errs []string

	for i, ep := range w.Endpoints {
		if strings.TrimSpace(ep) == "" {
			errs = append(errs, fmt.Sprintf("endpoints[%d] is empty", i))
		}
	}

	known := map[string]struct{}{
		string(core.EventPointsAwarded): {},
		string(core.EventPointsRevoked): {},
		string(core.EventBadgeEarned):   {},
		string(core.EventLevelUp):       {},
		string(core.EventCreditUsed):    {},
	}
	for _, t := range w.EventTypes {
		if _, ok := known[t]; !ok {
			errs = append(errs, fmt.Sprintf("unknown event type %q", t))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates security settings.
func (s SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

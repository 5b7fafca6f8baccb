package shift

import (
	"context"
	"database/sql"
	"log"
	"strconv"
	"time"
)

// SettingsStore loads the timing configuration from the system_settings
// key/value table, falling back to Defaults for anything missing or
// malformed. The settings UI writes the same keys.
type SettingsStore struct {
	db *sql.DB
}

// NewSettingsStore creates a loader over the settings table.
func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Load reads all timing keys in one query and builds an immutable Config.
func (s *SettingsStore) Load(ctx context.Context) (Config, error) {
	cfg := Defaults()
	if s == nil || s.db == nil {
		return cfg, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT setting_key, setting_value FROM system_settings
	`)
	if err != nil {
		return cfg, err
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return cfg, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return cfg, err
	}

	applySettings(&cfg, values)
	return cfg, nil
}

func applySettings(cfg *Config, values map[string]string) {
	clock := func(key string, dst *TimeOfDay) {
		v, ok := values[key]
		if !ok {
			return
		}
		t, err := ParseClock(v)
		if err != nil {
			log.Printf("settings: ignoring %s=%q: %v", key, v, err)
			return
		}
		*dst = t
	}
	num := func(key string, dst *int) {
		v, ok := values[key]
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.Printf("settings: ignoring %s=%q", key, v)
			return
		}
		*dst = n
	}

	clock("morning_checkin_start", &cfg.Morning.CheckinStart)
	clock("morning_checkin_end", &cfg.Morning.CheckinEnd)
	clock("morning_checkout_start", &cfg.Morning.CheckoutStart)
	clock("morning_checkout_end", &cfg.Morning.CheckoutEnd)
	clock("morning_class_end", &cfg.Morning.ClassEnd)
	clock("evening_checkin_start", &cfg.Evening.CheckinStart)
	clock("evening_checkin_end", &cfg.Evening.CheckinEnd)
	clock("evening_checkout_start", &cfg.Evening.CheckoutStart)
	clock("evening_checkout_end", &cfg.Evening.CheckoutEnd)
	clock("evening_class_end", &cfg.Evening.ClassEnd)

	num("auto_absent_morning_hour", &cfg.Morning.AutoAbsentHour)
	num("auto_absent_evening_hour", &cfg.Evening.AutoAbsentHour)
	num("minimum_duration_minutes", &cfg.MinimumDurationMinutes)

	var ms int
	ms = int(cfg.ScanDebounce / time.Millisecond)
	num("scan_debounce_ms", &ms)
	cfg.ScanDebounce = time.Duration(ms) * time.Millisecond

	ms = int(cfg.DuplicateSuppression / time.Millisecond)
	num("duplicate_suppression_ms", &ms)
	cfg.DuplicateSuppression = time.Duration(ms) * time.Millisecond
}

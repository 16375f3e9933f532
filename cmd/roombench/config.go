package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/codeGROOVE-dev/roomreg"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config describes one benchmark workload. The defaults reproduce the
// reference run: 977 rooms x 173 users, then 123,456,789 ten-byte appends.
type Config struct {
	Backend       string  `yaml:"backend"`
	Rooms         int     `yaml:"rooms"`
	Users         int     `yaml:"users"`
	Appends       int     `yaml:"appends"`
	SampleSize    int     `yaml:"sample_size"`
	Workers       int     `yaml:"workers"`
	Runs          int     `yaml:"runs"`
	Rejoin        string  `yaml:"rejoin"`
	Filter        float64 `yaml:"filter"`
	Shards        int     `yaml:"shards"`
	RoomCapacity  int     `yaml:"room_capacity"`
	UserCapacity  int     `yaml:"user_capacity"`
	InputCapacity int     `yaml:"input_capacity"`
}

func defaultConfig() Config {
	return Config{
		Backend:       "sharded",
		Rooms:         977,
		Users:         173,
		Appends:       123_456_789,
		SampleSize:    10,
		Workers:       1,
		Runs:          1,
		Rejoin:        "reset",
		Shards:        64,
		RoomCapacity:  64,
		UserCapacity:  32,
		InputCapacity: 64,
	}
}

// loadConfig decodes the YAML file at path over cfg. Unknown keys are an
// error so typos do not silently fall back to defaults.
func loadConfig(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	d := yaml.NewDecoder(f)
	d.KnownFields(true)
	if err := d.Decode(cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	var errs []error
	if c.Rooms < 1 {
		errs = append(errs, fmt.Errorf("rooms must be positive, got %d", c.Rooms))
	}
	if c.Users < 1 {
		errs = append(errs, fmt.Errorf("users must be positive, got %d", c.Users))
	}
	if c.Appends < 0 {
		errs = append(errs, fmt.Errorf("appends must not be negative, got %d", c.Appends))
	}
	if c.SampleSize < 0 {
		errs = append(errs, fmt.Errorf("sample_size must not be negative, got %d", c.SampleSize))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Shards < 1 || c.Shards > roomreg.MaxShards {
		errs = append(errs, fmt.Errorf("shards must be in [1, %d], got %d", roomreg.MaxShards, c.Shards))
	}
	if c.Runs < 1 {
		errs = append(errs, fmt.Errorf("runs must be positive, got %d", c.Runs))
	}
	if c.Filter < 0 || c.Filter >= 1 {
		errs = append(errs, fmt.Errorf("filter must be in [0, 1), got %v", c.Filter))
	}
	if _, err := roomreg.ParseBackend(c.Backend); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseRejoin(c.Rejoin); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func parseRejoin(s string) (roomreg.RejoinPolicy, error) {
	switch s {
	case "reset", "":
		return roomreg.RejoinReset, nil
	case "keep":
		return roomreg.RejoinKeep, nil
	}
	return 0, fmt.Errorf("unknown rejoin policy %q", s)
}

// options translates a validated config into registry options.
func (c Config) options(log *zap.Logger) []roomreg.Option {
	backend, _ := roomreg.ParseBackend(c.Backend)
	rejoin, _ := parseRejoin(c.Rejoin)
	opts := []roomreg.Option{
		roomreg.WithBackend(backend),
		roomreg.WithRejoin(rejoin),
		roomreg.WithShards(c.Shards),
		roomreg.WithRoomCapacity(c.RoomCapacity),
		roomreg.WithUserCapacity(c.UserCapacity),
		roomreg.WithInputCapacity(c.InputCapacity),
		roomreg.WithLogger(log),
	}
	if c.Filter > 0 {
		opts = append(opts, roomreg.WithUserFilter(c.Filter))
	}
	return opts
}

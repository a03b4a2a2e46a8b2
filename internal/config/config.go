// Package config defines process configuration and its loading order:
// defaults, then an optional YAML file, then TRIP_-prefixed
// environment variables.
package config

import "runtime"

// Config contains process-level settings. Per-run settings live in
// model.RunSpec; these are the defaults applied when a run spec leaves
// them unset.
type Config struct {
	// Addr configures the API server listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// TrackingDB is the sqlite file used for run tracking. Empty
	// disables tracking.
	TrackingDB string `koanf:"tracking_db"`

	// ChannelBufferSize bounds the channels between pipeline stages.
	ChannelBufferSize int `koanf:"channel_buffer_size"`

	// Worker counts per parallel stage.
	ValidationWorkers int `koanf:"validation_workers"`
	JoinWorkers       int `koanf:"join_workers"`
	WriteWorkers      int `koanf:"write_workers"`

	// RunTimeout is the overall run timeout, e.g. "5m". Hitting it is a
	// fatal abort.
	RunTimeout string `koanf:"run_timeout"`

	// SecondaryGroupBy is the default secondary aggregate attribute.
	SecondaryGroupBy string `koanf:"secondary_group_by"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Addr:              ":8080",
		TrackingDB:        "pipeline.db",
		ChannelBufferSize: 1000,
		ValidationWorkers: runtime.NumCPU(),
		JoinWorkers:       runtime.NumCPU(),
		WriteWorkers:      4,
		RunTimeout:        "5m",
		SecondaryGroupBy:  "country",
	}
}

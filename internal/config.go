package internal

import "time"

// Config is the process configuration, loaded from the environment.
type Config struct {
	BufferSize           int `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int `env:"CONNECTION_BUFFER_SIZE,required=true"`

	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT,required=true"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,required=true"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,required=true"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,required=true"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel        string        `env:"LOG_LEVEL,required=true"`
	Host            string        `env:"HOST,default=localhost"`
	Port            int           `env:"PORT,default=8080"`

	// DebugPort exposes the badger inspect dashboard when > 0.
	DebugPort int `env:"DEBUG_PORT"`

	// AllowOwnerEdits enables owner-list editing; deployments without it
	// answer owner grants and revocations with an unsupported-feature
	// error.
	AllowOwnerEdits bool `env:"ALLOW_OWNER_EDITS,default=true"`

	// CensoredNicknames is a comma-separated word list screened on
	// nickname registration. Empty disables screening.
	CensoredNicknames []string `env:"CENSORED_NICKNAMES"`
}

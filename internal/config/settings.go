package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every runtime setting variable.
const EnvPrefix = "HDREDIT"

// Settings are the runtime knobs of the CLI, read from HDREDIT_* variables.
type Settings struct {
	Debug            bool          `envconfig:"DEBUG"`
	ChunkSize        int           `envconfig:"CHUNK_SIZE" default:"100000"`
	WriteBuffer      int           `envconfig:"WRITE_BUFFER" default:"100000"`
	ProgressInterval time.Duration `envconfig:"PROGRESS_INTERVAL" default:"2s"`
	SRTDialTimeout   time.Duration `envconfig:"SRT_DIAL_TIMEOUT" default:"10s"`
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

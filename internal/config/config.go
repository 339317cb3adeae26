package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/moonhowl/werewolf-client/internal/game"
)

type Config struct {
	LogLevel string `yaml:"log-level" env:"WOLF_LOG_LEVEL" env-default:"info"`
	// ServerURL is the base URL for the join/session HTTP calls.
	ServerURL string `yaml:"server-url" env:"WOLF_SERVER_URL" env-default:"http://localhost:8000"`
	// SocketURL is the base URL for the persistent connection.
	SocketURL string `yaml:"socket-url" env:"WOLF_SOCKET_URL" env-default:"ws://localhost:8000"`
	// SessionDBPath is where room session tokens are persisted between runs.
	SessionDBPath string `yaml:"session-db-path" env:"WOLF_SESSION_DB" env-default:"werewolf-sessions.db"`

	Template game.Template `yaml:"template"`
}

// Load reads the config file (when it exists) and applies env overrides.
// An empty template section falls back to the standard board.
func Load(path string) (*Config, error) {
	conf := &Config{}

	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		err = cleanenv.ReadConfig(path, conf)
	} else {
		err = cleanenv.ReadEnv(conf)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load config: %w", err)
	}

	if len(conf.Template.Phases) == 0 {
		tmpl := game.DefaultTemplate()
		if conf.Template.Name != "" {
			tmpl.Name = conf.Template.Name
		}
		if conf.Template.Seats > 0 {
			tmpl.Seats = conf.Template.Seats
		}
		conf.Template = tmpl
	}
	return conf, nil
}

// MustLoad - panics on a broken config file, same contract as startup code
// that cannot proceed without one.
func MustLoad(path string) *Config {
	conf, err := Load(path)
	if err != nil {
		panic(err)
	}
	return conf
}

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config interface {
	EnvConfig
	APIConfig
	RoutesConfig
	StoreConfig
	IdentityConfig
	ServerConfig
	CorsConfig
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// source resolves a setting from the environment first, then from the
// values read from a config file.
type source struct {
	file map[string]string
}

func (s source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

type mainConfig struct {
	EnvVars
	API
	Routes
	Store
	Identity
	Server
	Cors
}

// New returns a Config backed by environment variables only.
func New() Config {
	return newMainConfig(source{})
}

// Load reads a TOML config file. Nested tables are flattened into the
// environment variable names, so [api] base_url becomes API_BASE_URL.
// Environment variables still take precedence over file values.
func Load(path string) (Config, error) {
	raw := make(map[string]any)
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	values := make(map[string]string)
	flatten("", raw, values)
	return newMainConfig(source{file: values}), nil
}

func newMainConfig(src source) mainConfig {
	return mainConfig{
		EnvVars:  EnvVars{src: src},
		API:      API{src: src},
		Routes:   Routes{src: src},
		Store:    Store{src: src},
		Identity: Identity{src: src},
		Server:   Server{src: src},
		Cors:     Cors{src: src},
	}
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch value := v.(type) {
		case map[string]any:
			flatten(key, value, out)
		case []any:
			parts := make([]string, 0, len(value))
			for _, p := range value {
				parts = append(parts, fmt.Sprint(p))
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(value)
		}
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	portEnvVar    = "PORT"
	appNameVar    = "APP_NAME"
	folderEnvVar  = "DATA_FOLDER"
	logLevelVar   = "LOG_LEVEL"
	environVar    = "ENV"
	apiBaseURLVar = "API_BASE_URL"
	timeoutVar    = "REQUEST_TIMEOUT"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetLogLevel() string
	GetEnv() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetLoginPath() string
	GetRegisterPath() string
	GetExchangePath() string
	GetLogoutPath() string
}

type RoutesConfig interface {
	GetHomeRoute() string
	GetSignInRoute() string
}

type EnvVars struct {
	src source
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.src.get(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.src.get(appNameVar, "food-delivery")
}

// GetDataFolder returns where file-backed sessions live. Defaults to the
// XDG config directory for the application.
func (e EnvVars) GetDataFolder() string {
	if folder := e.src.get(folderEnvVar, ""); folder != "" {
		return folder
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "./data"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, e.GetAppName())
}

func (e EnvVars) GetLogLevel() string {
	return e.src.get(logLevelVar, "info")
}

func (e EnvVars) GetEnv() string {
	return e.src.get(environVar, "DEV")
}

type API struct {
	src source
}

var _ APIConfig = API{}

func (a API) GetAPIBaseURL() string {
	return strings.TrimSuffix(a.src.get(apiBaseURLVar, "http://localhost:8080/api"), "/")
}

func (a API) GetRequestTimeout() time.Duration {
	return durationOr(a.src.get(timeoutVar, ""), 15*time.Second)
}

func (a API) GetLoginPath() string {
	return a.src.get("API_LOGIN_PATH", "/auth/login")
}

func (a API) GetRegisterPath() string {
	return a.src.get("API_REGISTER_PATH", "/auth/register")
}

func (a API) GetExchangePath() string {
	return a.src.get("API_EXCHANGE_PATH", "/auth/oauth/exchange")
}

func (a API) GetLogoutPath() string {
	return a.src.get("API_LOGOUT_PATH", "/auth/logout")
}

type Routes struct {
	src source
}

var _ RoutesConfig = Routes{}

func (r Routes) GetHomeRoute() string {
	return r.src.get("HOME_ROUTE", "/")
}

func (r Routes) GetSignInRoute() string {
	return r.src.get("SIGN_IN_ROUTE", "/sign-in")
}

// GetEnv reads a single environment variable with a default.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func durationOr(raw string, defaultValue time.Duration) time.Duration {
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

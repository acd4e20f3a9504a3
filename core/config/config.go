package config

import (
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"lexsync/core/archive"
	"lexsync/core/database"
	"lexsync/core/logger"
	"lexsync/core/server"
	"lexsync/feature/platform"
	"lexsync/feature/syncqueue"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
	// Archive holds configuration for the history archive storage.
	Archive archive.Config `mapstructure:"archive"`
	// Sync holds the queue dispatcher tuning knobs.
	Sync syncqueue.Config `mapstructure:"sync"`
	// Platforms holds per-platform adapter credentials.
	Platforms PlatformsConfig `mapstructure:"platforms"`
}

// PlatformsConfig carries one credential block per supported platform. A
// platform with no key or token configured is left unconfigured at startup.
type PlatformsConfig struct {
	Clio            platform.Credentials `mapstructure:"clio"`
	PracticePanther platform.Credentials `mapstructure:"practicepanther"`
	MyCase          platform.Credentials `mapstructure:"mycase"`
}

// Configured returns the credential blocks that actually carry a credential,
// keyed by platform name.
func (p PlatformsConfig) Configured() map[string]platform.Credentials {
	all := map[string]platform.Credentials{
		platform.PlatformClio:            p.Clio,
		platform.PlatformPracticePanther: p.PracticePanther,
		platform.PlatformMyCase:          p.MyCase,
	}
	configured := make(map[string]platform.Credentials)
	for name, creds := range all {
		if creds.APIKey != "" || creds.AccessToken != "" {
			configured[name] = creds
		}
	}
	return configured
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env file if it exists
	// We construct the path to .env
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SERVER_PORT -> server.port)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}

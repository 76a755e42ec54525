package main

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/lychee-technology/rowstore"
	"github.com/spf13/viper"
)

const envPrefix = "ROWSTORE"

// loadConfig merges defaults, an optional config file, a .env file next to
// the working directory and ROWSTORE_* environment variables, in increasing
// order of precedence.
func loadConfig(v *viper.Viper, file string) (*rowstore.Config, error) {
	// Ignore error if file doesn't exist
	_ = godotenv.Load(".env")
	if file != "" {
		_ = godotenv.Load(filepath.Join(filepath.Dir(file), ".env"))
	}

	bindDefaults(v, reflect.ValueOf(rowstore.DefaultConfig()), "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	var cfg rowstore.Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindDefaults registers every mapstructure key of value with its current
// value as default, which also makes the key visible to AutomaticEnv.
func bindDefaults(v *viper.Viper, value reflect.Value, prefix string) {
	if value.Kind() == reflect.Pointer {
		value = value.Elem()
	}
	t := value.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct {
			bindDefaults(v, value.Field(i), key)
			continue
		}
		v.SetDefault(key, value.Field(i).Interface())
	}
}

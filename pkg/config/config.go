package config

import (
	"errors"
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type options struct {
	paths    []string
	defaults map[string]any
	envs     map[string][]string
	onChange func()
}

type Option func(*options)

// WithPaths replaces the config search paths (default ./config and .).
func WithPaths(paths ...string) Option {
	return func(o *options) { o.paths = paths }
}

// WithDefaults sets viper defaults keyed by dotted config path.
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) { o.defaults = defaults }
}

// WithEnvAliases binds extra environment variable names to a config key,
// e.g. "vault.rpc_url" -> SAVINGS_RPC_URL.
func WithEnvAliases(envs map[string][]string) Option {
	return func(o *options) { o.envs = envs }
}

// OnChange runs after a successful hot reload.
func OnChange(fn func()) Option {
	return func(o *options) { o.onChange = fn }
}

// LoadAndWatch reads config/{service}.yaml into out and keeps it updated on
// file change. A missing file is allowed; defaults and environment still
// apply. A .env file in the working directory is loaded first.
func LoadAndWatch(service string, out interface{}, opts ...Option) (*viper.Viper, error) {
	o := &options{paths: []string{"./config", "."}}
	for _, opt := range opts {
		opt(o)
	}

	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName(service)
	v.SetConfigType("yaml")
	for _, p := range o.paths {
		v.AddConfigPath(p)
	}

	// SAVINGS_SERVICE_HTTP_ADDR overrides http.addr
	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(service, "-", "_")))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for k, val := range o.defaults {
		v.SetDefault(k, val)
	}
	for key, names := range o.envs {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, err
		}
	}

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
		log.Printf("[%s] no config file, using defaults and environment", service)
	}

	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}
	if !fileLoaded {
		return v, nil
	}

	log.Printf("[%s] config loaded from %s", service, v.ConfigFileUsed())

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("[%s] config file changed: %s", service, e.Name)

		if err := v.Unmarshal(out); err != nil {
			log.Printf("[%s] reload config error: %v", service, err)
			return
		}
		log.Printf("[%s] config reloaded OK", service)
		if o.onChange != nil {
			o.onChange()
		}
	})

	return v, nil
}

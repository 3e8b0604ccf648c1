package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/app"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/envutil"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
)

// rootOptions layers flags over environment over an optional YAML file.
// YAML keys use the environment names, lower-cased: tkg_triples_path: ...
type rootOptions struct {
	configFile string
	v          *viper.Viper
}

// flagBindings maps persistent flags to the setting they override.
var flagBindings = []struct {
	flag, key, usage string
}{
	{"triples", "TKG_TRIPLES_PATH", "N-Triples catalogue file"},
	{"parse-policy", "TKG_PARSE_POLICY", "malformed line handling: collect or abort"},
	{"vocabulary", "TKG_VOCABULARY_YAML", "predicate label override file"},
	{"store-backend", "TKG_STORE_BACKEND", "property store: neo4j, postgres, sqlite or none"},
	{"store-dsn", "TKG_STORE_DSN", "gorm DSN for the postgres or sqlite backend"},
	{"redis-addr", "REDIS_ADDR", "Redis address for the search cache"},
	{"log-mode", "LOG_MODE", "development, production or test"},
}

func (o *rootOptions) bind(root *cobra.Command) {
	o.v = viper.New()
	flags := root.PersistentFlags()
	flags.StringVar(&o.configFile, "config", "", "YAML config file")
	for _, b := range flagBindings {
		flags.String(b.flag, "", b.usage)
		_ = o.v.BindPFlag(b.key, flags.Lookup(b.flag))
	}
}

func (o *rootOptions) source() (envutil.Source, error) {
	o.v.AutomaticEnv()
	if strings.TrimSpace(o.configFile) != "" {
		o.v.SetConfigFile(o.configFile)
		o.v.SetConfigType("yaml")
		if err := o.v.ReadInConfig(); err != nil {
			return envutil.Source{}, fmt.Errorf("read config: %w", err)
		}
	}
	return envutil.Source{Lookup: o.v.GetString}, nil
}

// load returns a logger and config. mutate adjusts the config before it is
// validated, e.g. to switch the store off for catalogue-only commands.
func (o *rootOptions) load(mutate func(*app.Config)) (*logger.Logger, app.Config, error) {
	src, err := o.source()
	if err != nil {
		return nil, app.Config{}, err
	}
	log, err := logger.New(src.String("LOG_MODE", "development"))
	if err != nil {
		return nil, app.Config{}, fmt.Errorf("init logger: %w", err)
	}
	cfg := app.LoadConfigFrom(src, log)
	if cfg.Version == "" {
		cfg.Version = version
		cfg.Otel.Version = version
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return log, cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/loomworks/loom/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the LOOM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (LOOM_API_LISTEN, LOOM_GRAPH_BACKEND_TARGET, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: LOOM_API_LISTEN, LOOM_LINKS_SQLITE_PATH, etc.
	v.SetEnvPrefix("LOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Graph backend
	v.SetDefault("graph_backend.target", d.GraphBackend.Target)
	v.SetDefault("graph_backend.api_key", d.GraphBackend.APIKey)

	// Fact backend
	v.SetDefault("fact_backend.provider", d.FactBackend.Provider)
	v.SetDefault("fact_backend.target", d.FactBackend.Target)
	v.SetDefault("fact_backend.api_key", d.FactBackend.APIKey)

	// Links
	v.SetDefault("links.provider", d.Links.Provider)
	v.SetDefault("links.sqlite_path", d.Links.SQLitePath)
	v.SetDefault("links.postgres_dsn", d.Links.PostgresDSN)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Recall
	v.SetDefault("recall.max_entries", d.Recall.MaxEntries)
	v.SetDefault("recall.relevance_weight", d.Recall.RelevanceWeight)
	v.SetDefault("recall.recency_weight", d.Recall.RecencyWeight)
	v.SetDefault("recall.half_life_days", d.Recall.HalfLifeDays)

	// Consolidation
	v.SetDefault("consolidation.threshold", d.Consolidation.Threshold)
	v.SetDefault("consolidation.conflict_margin", d.Consolidation.ConflictMargin)
	v.SetDefault("consolidation.interval_minutes", d.Consolidation.IntervalMinutes)

	// API
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.mcp_listen", d.API.MCPListen)

	// Vector store
	v.SetDefault("vector_store.host", d.VectorStore.Host)
	v.SetDefault("vector_store.port", d.VectorStore.Port)
	v.SetDefault("vector_store.api_key", d.VectorStore.APIKey)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)
	v.SetDefault("vector_store.use_tls", d.VectorStore.UseTLS)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
}

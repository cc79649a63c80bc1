package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent loom configuration stored as config.toml
// in the .loom/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version       int                 `toml:"version"`
	GraphBackend  GraphBackendConfig  `toml:"graph_backend"`
	FactBackend   FactBackendConfig   `toml:"fact_backend"`
	Links         LinksConfig         `toml:"links"`
	Events        EventsConfig        `toml:"events"`
	Recall        RecallConfig        `toml:"recall"`
	Consolidation ConsolidationConfig `toml:"consolidation"`
	API           APIConfig           `toml:"api"`
	VectorStore   VectorStoreConfig   `toml:"vector_store"`
	Embedding     EmbeddingConfig     `toml:"embedding"`
}

// GraphBackendConfig holds connection settings for the temporal/relationship
// graph memory service.
type GraphBackendConfig struct {
	Target string `toml:"target,omitempty"`
	APIKey string `toml:"api_key,omitempty"`
}

// FactBackendConfig holds connection settings for the fact memory service.
// Provider selects between the hosted service ("factmem") and the
// self-hosted vector store ("vector").
type FactBackendConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// LinksConfig holds consolidation link store settings.
type LinksConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventsConfig holds audit event stream settings.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// RecallConfig holds merge and ranking settings.
type RecallConfig struct {
	MaxEntries      int     `toml:"max_entries,omitempty"`
	RelevanceWeight float64 `toml:"relevance_weight,omitempty"`
	RecencyWeight   float64 `toml:"recency_weight,omitempty"`
	HalfLifeDays    int     `toml:"half_life_days,omitempty"`
}

// ConsolidationConfig holds duplicate detection settings.
type ConsolidationConfig struct {
	Threshold       float64 `toml:"threshold,omitempty"`
	ConflictMargin  float64 `toml:"conflict_margin,omitempty"`
	IntervalMinutes int     `toml:"interval_minutes,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`

	// MCPListen is the address the MCP server listens on. Empty disables it.
	MCPListen string `toml:"mcp_listen,omitempty"`
}

// VectorStoreConfig holds settings for the self-hosted vector fact backend.
type VectorStoreConfig struct {
	Host       string `toml:"host,omitempty"`
	Port       int    `toml:"port,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	Collection string `toml:"collection,omitempty"`
	UseTLS     bool   `toml:"use_tls,omitempty"`
}

// EmbeddingConfig holds embedding provider settings for the vector fact
// backend.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"graph_backend.target": {
		get: func(c *Config) string { return c.GraphBackend.Target },
		set: func(c *Config, v string) error { c.GraphBackend.Target = v; return nil },
	},
	"graph_backend.api_key": {
		get: func(c *Config) string { return c.GraphBackend.APIKey },
		set: func(c *Config, v string) error { c.GraphBackend.APIKey = v; return nil },
	},
	"fact_backend.provider": {
		get: func(c *Config) string { return c.FactBackend.Provider },
		set: func(c *Config, v string) error { c.FactBackend.Provider = v; return nil },
	},
	"fact_backend.target": {
		get: func(c *Config) string { return c.FactBackend.Target },
		set: func(c *Config, v string) error { c.FactBackend.Target = v; return nil },
	},
	"fact_backend.api_key": {
		get: func(c *Config) string { return c.FactBackend.APIKey },
		set: func(c *Config, v string) error { c.FactBackend.APIKey = v; return nil },
	},
	"links.provider": {
		get: func(c *Config) string { return c.Links.Provider },
		set: func(c *Config, v string) error { c.Links.Provider = v; return nil },
	},
	"links.sqlite_path": {
		get: func(c *Config) string { return c.Links.SQLitePath },
		set: func(c *Config, v string) error { c.Links.SQLitePath = v; return nil },
	},
	"links.postgres_dsn": {
		get: func(c *Config) string { return c.Links.PostgresDSN },
		set: func(c *Config, v string) error { c.Links.PostgresDSN = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"recall.max_entries": {
		get: func(c *Config) string {
			if c.Recall.MaxEntries == 0 {
				return ""
			}
			return strconv.Itoa(c.Recall.MaxEntries)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for recall.max_entries: %w", err)
			}
			c.Recall.MaxEntries = n
			return nil
		},
	},
	"recall.relevance_weight": {
		get: func(c *Config) string { return formatFloat(c.Recall.RelevanceWeight) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for recall.relevance_weight: %w", err)
			}
			c.Recall.RelevanceWeight = f
			return nil
		},
	},
	"recall.recency_weight": {
		get: func(c *Config) string { return formatFloat(c.Recall.RecencyWeight) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for recall.recency_weight: %w", err)
			}
			c.Recall.RecencyWeight = f
			return nil
		},
	},
	"recall.half_life_days": {
		get: func(c *Config) string {
			if c.Recall.HalfLifeDays == 0 {
				return ""
			}
			return strconv.Itoa(c.Recall.HalfLifeDays)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for recall.half_life_days: %w", err)
			}
			c.Recall.HalfLifeDays = n
			return nil
		},
	},
	"consolidation.threshold": {
		get: func(c *Config) string { return formatFloat(c.Consolidation.Threshold) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for consolidation.threshold: %w", err)
			}
			c.Consolidation.Threshold = f
			return nil
		},
	},
	"consolidation.interval_minutes": {
		get: func(c *Config) string {
			if c.Consolidation.IntervalMinutes == 0 {
				return ""
			}
			return strconv.Itoa(c.Consolidation.IntervalMinutes)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for consolidation.interval_minutes: %w", err)
			}
			c.Consolidation.IntervalMinutes = n
			return nil
		},
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"api.mcp_listen": {
		get: func(c *Config) string { return c.API.MCPListen },
		set: func(c *Config, v string) error { c.API.MCPListen = v; return nil },
	},
	"vector_store.host": {
		get: func(c *Config) string { return c.VectorStore.Host },
		set: func(c *Config, v string) error { c.VectorStore.Host = v; return nil },
	},
	"vector_store.collection": {
		get: func(c *Config) string { return c.VectorStore.Collection },
		set: func(c *Config, v string) error { c.VectorStore.Collection = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
}

func formatFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).NotTo(BeNil())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Version).To(Equal(defaults.Version))
			Expect(cfg.GraphBackend.Target).To(Equal(defaults.GraphBackend.Target))
			Expect(cfg.FactBackend.Provider).To(Equal(defaults.FactBackend.Provider))
			Expect(cfg.FactBackend.Target).To(Equal(defaults.FactBackend.Target))
			Expect(cfg.Links.Provider).To(Equal(defaults.Links.Provider))
			Expect(cfg.Events.Provider).To(Equal(defaults.Events.Provider))
			Expect(cfg.Recall.MaxEntries).To(Equal(defaults.Recall.MaxEntries))
			Expect(cfg.Consolidation.Threshold).To(Equal(defaults.Consolidation.Threshold))
			Expect(cfg.API.Listen).To(Equal(defaults.API.Listen))
			Expect(cfg.Embedding.Model).To(Equal(defaults.Embedding.Model))
		})

		It("loads a valid config file", func() {
			data := `version = 0

[graph_backend]
target = "https://api.getzep.com"
api_key = "zep-key"

[recall]
max_entries = 20
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Version).To(Equal(0))
			Expect(cfg.GraphBackend.Target).To(Equal("https://api.getzep.com"))
			Expect(cfg.GraphBackend.APIKey).To(Equal("zep-key"))
			Expect(cfg.Recall.MaxEntries).To(Equal(20))
		})

		It("loads all config fields", func() {
			data := `version = 0

[graph_backend]
target = "https://graph.example.com"

[fact_backend]
provider = "vector"
target = "https://facts.example.com"

[links]
provider = "postgres"
postgres_dsn = "postgres://loom@localhost/loom"

[events]
provider = "kafka"
brokers = ["localhost:9092"]
topic = "memory.links"

[recall]
max_entries = 25
relevance_weight = 0.6
recency_weight = 0.4
half_life_days = 14

[consolidation]
threshold = 0.9
conflict_margin = 0.03
interval_minutes = 30

[api]
listen = ":9091"
mcp_listen = ":9092"

[vector_store]
host = "qdrant.internal"
port = 6334
collection = "facts"

[embedding]
provider = "ollama"
target = "http://localhost:11434"
model = "nomic-embed-text"
dimensions = 1024
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.GraphBackend.Target).To(Equal("https://graph.example.com"))
			Expect(cfg.FactBackend.Provider).To(Equal("vector"))
			Expect(cfg.Links.Provider).To(Equal("postgres"))
			Expect(cfg.Links.PostgresDSN).To(Equal("postgres://loom@localhost/loom"))
			Expect(cfg.Events.Provider).To(Equal("kafka"))
			Expect(cfg.Events.Brokers).To(ConsistOf("localhost:9092"))
			Expect(cfg.Events.Topic).To(Equal("memory.links"))
			Expect(cfg.Recall.MaxEntries).To(Equal(25))
			Expect(cfg.Recall.RelevanceWeight).To(BeNumerically("~", 0.6, 0.001))
			Expect(cfg.Recall.HalfLifeDays).To(Equal(14))
			Expect(cfg.Consolidation.Threshold).To(BeNumerically("~", 0.9, 0.001))
			Expect(cfg.Consolidation.IntervalMinutes).To(Equal(30))
			Expect(cfg.API.Listen).To(Equal(":9091"))
			Expect(cfg.API.MCPListen).To(Equal(":9092"))
			Expect(cfg.VectorStore.Host).To(Equal("qdrant.internal"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(1024)))
		})

		It("returns error for malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not valid toml [[["), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(cfg).To(BeNil())
		})

		It("returns error for unsupported config version", func() {
			data := `version = 99
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version"))
			Expect(cfg).To(BeNil())
		})

		It("fills in defaults for unset fields in a partial config", func() {
			data := `version = 0

[graph_backend]
target = "https://graph.example.com"
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.GraphBackend.Target).To(Equal("https://graph.example.com"))

			defaults := config.NewDefaultConfig()
			Expect(cfg.FactBackend.Provider).To(Equal(defaults.FactBackend.Provider))
			Expect(cfg.Recall.MaxEntries).To(Equal(defaults.Recall.MaxEntries))
			Expect(cfg.Consolidation.Threshold).To(Equal(defaults.Consolidation.Threshold))
			Expect(cfg.API.Listen).To(Equal(defaults.API.Listen))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk and round-trips", func() {
			cfg := config.NewDefaultConfig()
			cfg.GraphBackend.Target = "https://graph.example.com"
			cfg.Consolidation.Threshold = 0.9

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SaveConfig(cfg)).To(Succeed())

			_, err = os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SaveConfig(nil)).To(HaveOccurred())
		})

		It("overwrites existing config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			first := config.NewDefaultConfig()
			first.Links.Provider = "sqlite"
			Expect(c.SaveConfig(first)).To(Succeed())

			second := config.NewDefaultConfig()
			second.Links.Provider = "postgres"
			Expect(c.SaveConfig(second)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Links.Provider).To(Equal("postgres"))
		})
	})

	Describe("SetConfigValue", func() {
		It("sets a string config key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("graph_backend.target", "https://graph.example.com")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.GraphBackend.Target).To(Equal("https://graph.example.com"))
		})

		It("sets a float config key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("consolidation.threshold", "0.9")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Consolidation.Threshold).To(BeNumerically("~", 0.9, 0.001))
		})

		It("sets an int config key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("recall.max_entries", "25")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Recall.MaxEntries).To(Equal(25))
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = c.SetConfigValue("nonexistent_key", "value")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown config key"))
		})

		It("returns error for invalid numeric value", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = c.SetConfigValue("recall.max_entries", "not-a-number")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("invalid value"))
		})

		It("preserves existing values when setting a new key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("graph_backend.target", "https://graph.example.com")).To(Succeed())
			Expect(c.SetConfigValue("graph_backend.api_key", "zep-key")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.GraphBackend.Target).To(Equal("https://graph.example.com"))
			Expect(cfg.GraphBackend.APIKey).To(Equal("zep-key"))
		})
	})

	Describe("GetConfigValue", func() {
		It("gets a set config value", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("fact_backend.provider", "vector")).To(Succeed())

			val, err := c.GetConfigValue("fact_backend.provider")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("vector"))
		})

		It("returns default value when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			val, err := c.GetConfigValue("fact_backend.provider")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal(config.NewDefaultConfig().FactBackend.Provider))
		})

		It("returns empty string for key with no default", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			val, err := c.GetConfigValue("links.postgres_dsn")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(BeEmpty())
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.GetConfigValue("nonexistent_key")
			Expect(err).To(HaveOccurred())
		})

		It("gets a float config value as string", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			val, err := c.GetConfigValue("consolidation.threshold")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("0.85"))
		})
	})

	Describe("ValidConfigKeys", func() {
		It("returns all expected keys", func() {
			keys := config.ValidConfigKeys()
			Expect(keys).To(ContainElements(
				"graph_backend.target",
				"graph_backend.api_key",
				"fact_backend.provider",
				"fact_backend.target",
				"links.provider",
				"links.sqlite_path",
				"links.postgres_dsn",
				"events.provider",
				"events.topic",
				"recall.max_entries",
				"recall.relevance_weight",
				"recall.recency_weight",
				"recall.half_life_days",
				"consolidation.threshold",
				"consolidation.interval_minutes",
				"api.listen",
				"api.mcp_listen",
				"embedding.dimensions",
			))
		})

		It("returns keys in stable order", func() {
			keys1 := config.ValidConfigKeys()
			keys2 := config.ValidConfigKeys()
			Expect(keys1).To(Equal(keys2))
		})
	})

	Describe("IsValidConfigKey", func() {
		It("returns true for valid keys", func() {
			Expect(config.IsValidConfigKey("graph_backend.target")).To(BeTrue())
			Expect(config.IsValidConfigKey("recall.max_entries")).To(BeTrue())
		})

		It("returns false for invalid keys", func() {
			Expect(config.IsValidConfigKey("nonexistent")).To(BeFalse())
			Expect(config.IsValidConfigKey("")).To(BeFalse())
			Expect(config.IsValidConfigKey("target")).To(BeFalse())
		})
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("parses valid TOML into a Config", func() {
		data := []byte(`version = 0

[graph_backend]
target = "https://api.getzep.com"

[consolidation]
threshold = 0.9
`)
		cfg, err := config.ParseConfigTOML(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Version).To(Equal(0))
		Expect(cfg.GraphBackend.Target).To(Equal("https://api.getzep.com"))
		Expect(cfg.Consolidation.Threshold).To(BeNumerically("~", 0.9, 0.001))
	})

	It("returns error for invalid TOML", func() {
		cfg, err := config.ParseConfigTOML([]byte("not valid [[["))
		Expect(err).To(HaveOccurred())
		Expect(cfg).To(BeNil())
	})

	It("rejects unsupported config version", func() {
		cfg, err := config.ParseConfigTOML([]byte("version = 2\n"))
		Expect(err).To(HaveOccurred())
		Expect(cfg).To(BeNil())
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).NotTo(BeNil())

		defaults := config.NewDefaultConfig()
		Expect(v.GetString("graph_backend.target")).To(Equal(defaults.GraphBackend.Target))
		Expect(v.GetString("fact_backend.provider")).To(Equal(defaults.FactBackend.Provider))
		Expect(v.GetInt("recall.max_entries")).To(Equal(defaults.Recall.MaxEntries))
		Expect(v.GetString("api.listen")).To(Equal(defaults.API.Listen))
	})

	It("reads config file values over defaults", func() {
		data := `[graph_backend]
target = "https://graph.example.com"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("graph_backend.target")).To(Equal("https://graph.example.com"))
		Expect(v.GetString("api.listen")).To(Equal(config.NewDefaultConfig().API.Listen))
	})

	It("respects environment variables with LOOM_ prefix", func() {
		os.Setenv("LOOM_GRAPH_BACKEND_TARGET", "https://env.example.com")
		defer os.Unsetenv("LOOM_GRAPH_BACKEND_TARGET")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("graph_backend.target")).To(Equal("https://env.example.com"))
	})

	It("env vars take precedence over config file values", func() {
		data := `[graph_backend]
target = "https://file.example.com"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		os.Setenv("LOOM_GRAPH_BACKEND_TARGET", "https://env.example.com")
		defer os.Unsetenv("LOOM_GRAPH_BACKEND_TARGET")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("graph_backend.target")).To(Equal("https://env.example.com"))
	})
})

var _ = Describe("BindFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		fs := config.FlagSet{
			config.FlagAPIListen: {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for API server to listen on"},
		}

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, fs, config.FlagAPIListen, &listen)

		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, fs, []string{config.FlagAPIListen})

		Expect(v.GetString("api.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		data := `[api]
listen = ":5555"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		fs := config.FlagSet{
			config.FlagAPIListen: {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for API server to listen on"},
		}

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, fs, config.FlagAPIListen, &listen)

		config.BindRegisteredFlags(v, cmd, fs, []string{config.FlagAPIListen})

		Expect(v.GetString("api.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.FlagSet{}, []string{"nonexistent"})

		Expect(v.GetString("api.listen")).To(Equal(config.NewDefaultConfig().API.Listen))
	})

	It("AddStringFlag pulls name, shorthand, and description from FlagSet", func() {
		fs := config.FlagSet{
			config.FlagGraphTarget: {Name: "graph-target", Shorthand: "g", ViperKey: "graph_backend.target", Description: "Graph memory service URL"},
		}

		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, fs, config.FlagGraphTarget, &target)

		f := cmd.Flags().Lookup("graph-target")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("g"))
		Expect(f.Usage).To(Equal("Graph memory service URL"))
		Expect(f.DefValue).To(Equal(config.NewDefaultConfig().GraphBackend.Target))
	})

	It("AddIntFlag works for the consolidation interval", func() {
		fs := config.FlagSet{
			config.FlagInterval: {Name: "interval", ViperKey: "consolidation.interval_minutes", Description: "Minutes between consolidation runs"},
		}

		cmd := &cobra.Command{Use: "test"}
		var interval int
		config.AddIntFlag(cmd, fs, config.FlagInterval, &interval)

		f := cmd.Flags().Lookup("interval")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("60"))
	})
})

var _ = Describe("NewDefaultConfig", func() {
	It("returns fully-populated defaults", func() {
		cfg := config.NewDefaultConfig()
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.GraphBackend.Target).To(Equal("http://localhost:8000"))
		Expect(cfg.FactBackend.Provider).To(Equal("factmem"))
		Expect(cfg.FactBackend.Target).To(Equal("https://api.mem0.ai"))
		Expect(cfg.Links.Provider).To(Equal("sqlite"))
		Expect(cfg.Events.Provider).To(Equal("nop"))
		Expect(cfg.Recall.MaxEntries).To(Equal(10))
		Expect(cfg.Recall.RelevanceWeight).To(BeNumerically("~", 0.7, 0.001))
		Expect(cfg.Recall.RecencyWeight).To(BeNumerically("~", 0.3, 0.001))
		Expect(cfg.Recall.HalfLifeDays).To(Equal(30))
		Expect(cfg.Consolidation.Threshold).To(BeNumerically("~", 0.85, 0.001))
		Expect(cfg.Consolidation.IntervalMinutes).To(Equal(60))
		Expect(cfg.API.Listen).To(Equal(":8081"))
		Expect(cfg.API.MCPListen).To(Equal(":8082"))
		Expect(cfg.Embedding.Provider).To(Equal("ollama"))
		Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
	})
})

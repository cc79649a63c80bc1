package config

const (
	defaultGraphTarget = "http://localhost:8000"

	defaultFactProvider = "factmem"
	defaultFactTarget   = "https://api.mem0.ai"

	defaultLinksProvider   = "sqlite"
	defaultLinksSQLitePath = "links.db"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "loom.consolidation.links"

	defaultRecallMaxEntries      = 10
	defaultRecallRelevanceWeight = 0.7
	defaultRecallRecencyWeight   = 0.3
	defaultRecallHalfLifeDays    = 30

	defaultConsolidationThreshold = 0.85
	defaultConsolidationMargin    = 0.05
	defaultConsolidationInterval  = 60

	defaultAPIListen = ":8081"
	defaultMCPListen = ":8082"

	defaultVectorHost       = "localhost"
	defaultVectorPort       = 6334
	defaultVectorCollection = "loom_facts"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		GraphBackend: GraphBackendConfig{
			Target: defaultGraphTarget,
		},
		FactBackend: FactBackendConfig{
			Provider: defaultFactProvider,
			Target:   defaultFactTarget,
		},
		Links: LinksConfig{
			Provider:   defaultLinksProvider,
			SQLitePath: defaultLinksSQLitePath,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Recall: RecallConfig{
			MaxEntries:      defaultRecallMaxEntries,
			RelevanceWeight: defaultRecallRelevanceWeight,
			RecencyWeight:   defaultRecallRecencyWeight,
			HalfLifeDays:    defaultRecallHalfLifeDays,
		},
		Consolidation: ConsolidationConfig{
			Threshold:       defaultConsolidationThreshold,
			ConflictMargin:  defaultConsolidationMargin,
			IntervalMinutes: defaultConsolidationInterval,
		},
		API: APIConfig{
			Listen:    defaultAPIListen,
			MCPListen: defaultMCPListen,
		},
		VectorStore: VectorStoreConfig{
			Host:       defaultVectorHost,
			Port:       defaultVectorPort,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
	}
}

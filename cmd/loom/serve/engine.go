package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/loomworks/loom/pkg/consolidate"
	"github.com/loomworks/loom/pkg/consolidate/linkstore"
	linksinmemory "github.com/loomworks/loom/pkg/consolidate/linkstore/inmemory"
	linkspostgres "github.com/loomworks/loom/pkg/consolidate/linkstore/postgres"
	linkssqlite "github.com/loomworks/loom/pkg/consolidate/linkstore/sqlite"
	"github.com/loomworks/loom/pkg/coordinator"
	"github.com/loomworks/loom/pkg/embeddings/ollama"
	"github.com/loomworks/loom/pkg/eventstream"
	eventskafka "github.com/loomworks/loom/pkg/eventstream/kafka"
	eventsnop "github.com/loomworks/loom/pkg/eventstream/nop"
	"github.com/loomworks/loom/pkg/hybrid"
	"github.com/loomworks/loom/pkg/memory"
	"github.com/loomworks/loom/pkg/memory/backend"
	"github.com/loomworks/loom/pkg/memory/backend/factmem"
	"github.com/loomworks/loom/pkg/memory/backend/graphmem"
	backendinmemory "github.com/loomworks/loom/pkg/memory/backend/inmemory"
	"github.com/loomworks/loom/pkg/memory/backend/vecmem"
	"github.com/loomworks/loom/pkg/normalize"
	"github.com/loomworks/loom/pkg/route"
	"github.com/loomworks/loom/pkg/vector/qdrantvec"
)

// Engine bundles the wired components of a running loom instance.
type Engine struct {
	Coordinator *coordinator.Coordinator
	Scheduler   *consolidate.Scheduler
	Links       linkstore.Store

	graph  backend.Client
	fact   backend.Client
	events eventstream.Publisher
}

// Close releases every held resource. Safe to call once.
func (e *Engine) Close() {
	if e.graph != nil {
		_ = e.graph.Close()
	}
	if e.fact != nil {
		_ = e.fact.Close()
	}
	if e.events != nil {
		_ = e.events.Close()
	}
	if e.Links != nil {
		_ = e.Links.Close()
	}
}

// BuildEngine assembles the full engine from viper configuration.
func BuildEngine(ctx context.Context, v *viper.Viper, logger *slog.Logger) (*Engine, error) {
	graph, err := newGraphBackend(v, logger)
	if err != nil {
		return nil, err
	}

	fact, err := newFactBackend(ctx, v, logger)
	if err != nil {
		return nil, err
	}

	links, err := newLinkStore(ctx, v)
	if err != nil {
		return nil, err
	}

	events, err := newPublisher(v, logger)
	if err != nil {
		return nil, err
	}

	normalizer := normalize.New(normalize.Config{})
	router := route.New(graph, fact, logger)

	engine := hybrid.New(hybrid.Config{
		RelevanceWeight: v.GetFloat64("recall.relevance_weight"),
		RecencyWeight:   v.GetFloat64("recall.recency_weight"),
		HalfLife:        time.Duration(v.GetInt("recall.half_life_days")) * 24 * time.Hour,
		MaxEntries:      v.GetInt("recall.max_entries"),
	}, graph, fact, links, logger)

	consolidator := consolidate.New(consolidate.Config{
		Threshold:      v.GetFloat64("consolidation.threshold"),
		ConflictMargin: v.GetFloat64("consolidation.conflict_margin"),
	}, graph, fact, links, events, logger)

	coord := coordinator.New(normalizer, router, engine, consolidator, logger)

	interval := time.Duration(v.GetInt("consolidation.interval_minutes")) * time.Minute
	scheduler := consolidate.NewScheduler(consolidator, coord, interval, logger)

	return &Engine{
		Coordinator: coord,
		Scheduler:   scheduler,
		Links:       links,
		graph:       graph,
		fact:        fact,
		events:      events,
	}, nil
}

func newGraphBackend(v *viper.Viper, logger *slog.Logger) (backend.Client, error) {
	client, err := graphmem.NewClient(graphmem.Config{
		URL:    v.GetString("graph_backend.target"),
		APIKey: v.GetString("graph_backend.api_key"),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating graph backend: %w", err)
	}
	return client, nil
}

func newFactBackend(ctx context.Context, v *viper.Viper, logger *slog.Logger) (backend.Client, error) {
	switch provider := v.GetString("fact_backend.provider"); provider {
	case "factmem":
		client, err := factmem.NewClient(factmem.Config{
			URL:    v.GetString("fact_backend.target"),
			APIKey: v.GetString("fact_backend.api_key"),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating fact backend: %w", err)
		}
		return client, nil

	case "vector":
		driver, err := qdrantvec.NewDriver(ctx, qdrantvec.Config{
			Host:           v.GetString("vector_store.host"),
			Port:           v.GetInt("vector_store.port"),
			APIKey:         v.GetString("vector_store.api_key"),
			UseTLS:         v.GetBool("vector_store.use_tls"),
			CollectionName: v.GetString("vector_store.collection"),
			Dimensions:     uint64(v.GetUint("embedding.dimensions")),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating vector store: %w", err)
		}

		embedder, err := ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: v.GetString("embedding.target"),
			Model:   v.GetString("embedding.model"),
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}

		return vecmem.NewClient(driver, embedder, logger)

	case "memory":
		return backendinmemory.NewClient(backendinmemory.Config{
			Backend: memory.BackendFact,
		}), nil

	default:
		return nil, fmt.Errorf("unknown fact backend provider: %q", provider)
	}
}

func newLinkStore(ctx context.Context, v *viper.Viper) (linkstore.Store, error) {
	switch provider := v.GetString("links.provider"); provider {
	case "sqlite":
		store, err := linkssqlite.NewStore(v.GetString("links.sqlite_path"))
		if err != nil {
			return nil, fmt.Errorf("creating sqlite link store: %w", err)
		}
		return store, nil

	case "postgres":
		store, err := linkspostgres.NewStore(ctx, v.GetString("links.postgres_dsn"))
		if err != nil {
			return nil, fmt.Errorf("creating postgres link store: %w", err)
		}
		return store, nil

	case "memory":
		return linksinmemory.NewStore(), nil

	default:
		return nil, fmt.Errorf("unknown link store provider: %q", provider)
	}
}

func newPublisher(v *viper.Viper, logger *slog.Logger) (eventstream.Publisher, error) {
	switch provider := v.GetString("events.provider"); provider {
	case "kafka":
		publisher, err := eventskafka.NewPublisher(eventskafka.Config{
			Brokers: v.GetStringSlice("events.brokers"),
			Topic:   v.GetString("events.topic"),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return publisher, nil

	case "nop":
		return eventsnop.NewPublisher(), nil

	default:
		return nil, fmt.Errorf("unknown events provider: %q", provider)
	}
}

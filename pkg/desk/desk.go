// Package desk wires configuration into a running HR desk: the document
// registry, vector index, embedder and chat model, plus the ingestion
// pipeline, query engine and lifecycle manager built on top of them.
//
// Service is the one entry point the CLI uses. Every mutation goes through it
// so the retrieval cache is purged whenever the visible corpus changes.
package desk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/papercomputeco/hrdesk/pkg/config"
	"github.com/papercomputeco/hrdesk/pkg/document"
	"github.com/papercomputeco/hrdesk/pkg/dotdir"
	"github.com/papercomputeco/hrdesk/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/hrdesk/pkg/embeddings/utils"
	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/hrdesk/pkg/eventstream/utils"
	"github.com/papercomputeco/hrdesk/pkg/ingest"
	"github.com/papercomputeco/hrdesk/pkg/keylock"
	"github.com/papercomputeco/hrdesk/pkg/lifecycle"
	"github.com/papercomputeco/hrdesk/pkg/llm"
	"github.com/papercomputeco/hrdesk/pkg/llm/provider"
	"github.com/papercomputeco/hrdesk/pkg/loader"
	"github.com/papercomputeco/hrdesk/pkg/rag"
	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/storage"
	storageutils "github.com/papercomputeco/hrdesk/pkg/storage/utils"
	"github.com/papercomputeco/hrdesk/pkg/vector"
	vectorutils "github.com/papercomputeco/hrdesk/pkg/vector/utils"
)

const (
	registryFile = "hrdesk.sqlite"
	vectorFile   = "vectors.sqlite"
)

// Options configures New. Any backend set here is used as is instead of being
// built from Config, and is closed by Service.Close all the same.
type Options struct {
	Config *config.Config

	// ConfigDir overrides .hrdesk/ resolution for the default database files.
	ConfigDir string

	// Members is the user-management collaborator. Optional.
	Members lifecycle.MemberStore

	Store     storage.Driver
	Vectors   vector.Driver
	Embedder  embeddings.Embedder
	Generator llm.Generator
	Publisher eventstream.Publisher

	Logger *slog.Logger
}

// Service is a wired HR desk.
type Service struct {
	store     storage.Driver
	vectors   vector.Driver
	embedder  embeddings.Embedder
	publisher eventstream.Publisher

	pipeline  *ingest.Pipeline
	engine    *rag.Engine
	lifecycle *lifecycle.Manager

	logger *slog.Logger
}

// New builds every backend named by opts.Config and wires them together.
// On error, whatever was already opened is closed.
func New(ctx context.Context, opts Options) (svc *Service, err error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	policy, err := cfg.RetryPolicy()
	if err != nil {
		return nil, err
	}
	ttl, err := cfg.CacheTTL()
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:     opts.Store,
		vectors:   opts.Vectors,
		embedder:  opts.Embedder,
		publisher: opts.Publisher,
		logger:    log,
	}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	ddm := dotdir.NewManager()

	if s.store == nil {
		o := &storageutils.NewStorageDriverOpts{
			SQLitePath:  cfg.Storage.SQLitePath,
			PostgresDSN: cfg.Storage.PostgresDSN,
		}
		if o.SQLitePath == "" && o.PostgresDSN == "" {
			if o.SQLitePath, err = ddm.Path(opts.ConfigDir, registryFile); err != nil {
				return nil, err
			}
		}
		if s.store, err = storageutils.NewStorageDriver(ctx, o); err != nil {
			return nil, err
		}
		log.Debug("document registry ready", "sqlite", o.SQLitePath, "postgres", o.PostgresDSN != "")
	}

	if s.vectors == nil {
		o := &vectorutils.NewVectorDriverOpts{
			ProviderType: cfg.VectorStore.Provider,
			TargetURL:    cfg.VectorStore.Target,
			SQLitePath:   cfg.VectorStore.Target,
			Collection:   cfg.VectorStore.Collection,
			APIKey:       cfg.VectorStore.APIKey,
			Dimensions:   cfg.Embedding.Dimensions,
			Logger:       log,
		}
		if isSQLiteProvider(o.ProviderType) && o.SQLitePath == "" {
			if o.SQLitePath, err = ddm.Path(opts.ConfigDir, vectorFile); err != nil {
				return nil, err
			}
		}
		if s.vectors, err = vectorutils.NewVectorDriver(ctx, o); err != nil {
			return nil, err
		}
		log.Debug("vector index ready", "provider", o.ProviderType, "dimensions", o.Dimensions)
	}

	if s.embedder == nil {
		s.embedder, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType:      cfg.Embedding.Provider,
			TargetURL:         cfg.Embedding.Target,
			Model:             cfg.Embedding.Model,
			APIKey:            provider.ResolveAPIKey(cfg.Embedding.Provider, cfg.Embedding.APIKey),
			Dimensions:        cfg.Embedding.Dimensions,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
			Retry:             policy,
			Logger:            log,
		})
		if err != nil {
			return nil, err
		}
	}

	generator := opts.Generator
	if generator == nil {
		generator, err = provider.New(provider.Config{
			Provider:    cfg.LLM.Provider,
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.Target,
			Temperature: cfg.TemperatureValue(),
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
	}

	if s.publisher == nil {
		s.publisher, err = eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
			ProviderType: cfg.EventStream.Provider,
			Brokers:      cfg.EventStream.BrokerList(),
			Topic:        cfg.EventStream.Topic,
			Logger:       log,
		})
		if err != nil {
			return nil, err
		}
	}

	locks := keylock.New()

	s.pipeline, err = ingest.New(&ingest.Config{
		Store:        s.store,
		Vectors:      s.vectors,
		Embedder:     s.embedder,
		Publisher:    s.publisher,
		Locks:        locks,
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
		Retry:        policy,
		Logger:       log.With("component", "ingest"),
	})
	if err != nil {
		return nil, err
	}

	s.engine, err = rag.New(&rag.Config{
		Vectors:         s.vectors,
		Embedder:        s.embedder,
		Generator:       generator,
		TopK:            cfg.Retrieval.TopK,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
		CacheTTL:        ttl,
		Retry:           policy,
		Logger:          log.With("component", "rag"),
	})
	if err != nil {
		return nil, err
	}

	s.lifecycle, err = lifecycle.New(&lifecycle.Config{
		Store:     s.store,
		Vectors:   s.vectors,
		Members:   opts.Members,
		Publisher: s.publisher,
		Locks:     locks,
		Retry:     policy,
		Logger:    log.With("component", "lifecycle"),
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

func isSQLiteProvider(p string) bool {
	return p == "sqlite" || p == "sqlitevec"
}

// Ask answers question from the passages visible to principal's role.
func (s *Service) Ask(ctx context.Context, principal roles.Principal, question string, topK int) (*rag.Answer, error) {
	return s.engine.Answer(ctx, rag.Query{Principal: principal, Question: question, TopK: topK})
}

// Ingest runs up through the pipeline and drops cached retrievals.
func (s *Service) Ingest(ctx context.Context, actor roles.Principal, up ingest.Upload) (*document.Document, error) {
	doc, err := s.pipeline.Ingest(ctx, actor, up)
	s.engine.Purge()
	return doc, err
}

// LoadFile reads path into an Upload. The document ID is derived from the
// absolute path so that ingesting the same file again replaces it.
func LoadFile(path string, visibility roles.Policy) (ingest.Upload, error) {
	res, err := loader.Load(path)
	if err != nil {
		return ingest.Upload{}, err
	}
	return ingest.Upload{
		DocumentID:   DocumentIDForPath(res.Path),
		Filename:     res.Filename,
		SourceFormat: res.SourceFormat,
		Text:         res.Text,
		Visibility:   visibility,
	}, nil
}

// DocumentIDForPath is the stable document ID for a file on disk.
func DocumentIDForPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

// IngestFile loads and ingests one file.
func (s *Service) IngestFile(ctx context.Context, actor roles.Principal, path string, visibility roles.Policy) (*document.Document, error) {
	// Checked before touching the file so a refusal does not reveal whether it exists.
	if !roles.CanUpload(actor.Role) {
		return nil, errdefs.PermissionDenied(actor.Role.String(), "upload documents")
	}
	up, err := LoadFile(path, visibility)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, actor, up)
}

// Delete removes a document and every one of its chunks.
func (s *Service) Delete(ctx context.Context, actor roles.Principal, documentID string) error {
	err := s.lifecycle.Delete(ctx, actor, documentID)
	s.engine.Purge()
	return err
}

// RemoveMember authorizes and forwards a member removal.
func (s *Service) RemoveMember(ctx context.Context, actor, target roles.Principal) error {
	return s.lifecycle.RemoveMember(ctx, actor, target)
}

// Documents lists the registry as seen by viewer. Roles that may delete
// documents see every record including failed ones; everyone else sees only
// indexed documents their role can retrieve from.
func (s *Service) Documents(ctx context.Context, viewer roles.Principal) ([]*document.Document, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if roles.CanDeleteDocument(viewer.Role) {
		return docs, nil
	}
	return slices.DeleteFunc(docs, func(d *document.Document) bool {
		return d.Stage != document.StageIndexed || !d.VisibleTo(viewer.Role)
	}), nil
}

// Close releases every backend.
func (s *Service) Close() error {
	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.embedder != nil {
		errs = append(errs, s.embedder.Close())
	}
	if s.vectors != nil {
		errs = append(errs, s.vectors.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

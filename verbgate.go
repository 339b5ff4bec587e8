package verbgate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/verbgate/internal/config"
	"github.com/aretw0/verbgate/internal/logging"
	"github.com/aretw0/verbgate/pkg/adapters/catalog"
	"github.com/aretw0/verbgate/pkg/adapters/memory"
	"github.com/aretw0/verbgate/pkg/adapters/process"
	"github.com/aretw0/verbgate/pkg/adapters/redis"
	"github.com/aretw0/verbgate/pkg/observability"
	"github.com/aretw0/verbgate/pkg/orchestrator"
	"github.com/aretw0/verbgate/pkg/persistence/middleware"
	"github.com/aretw0/verbgate/pkg/pipeline"
	"github.com/aretw0/verbgate/pkg/ports"
	"github.com/aretw0/verbgate/pkg/semreg"
	"github.com/aretw0/verbgate/pkg/session"
	"github.com/aretw0/verbgate/pkg/trace"
)

// Version is overridden at build time with -ldflags "-X github.com/aretw0/verbgate.Version=...".
var Version = "0.1.0-dev"

// lockPrefix namespaces distributed session locks apart from stored choices.
const lockPrefix = "verbgate:"

// Config is the service configuration. See LoadConfig.
type Config = config.Config

// LoadConfig reads a YAML configuration file over the defaults and applies
// VERBGATE_* environment overrides. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return config.Default()
}

// ErrNoCollaborators is returned when neither a catalog nor a matcher and generator are configured.
var ErrNoCollaborators = errors.New("a catalog, or both a matcher and a generator, is required")

// Gateway is a fully wired verbgate instance.
type Gateway struct {
	*orchestrator.Orchestrator

	Registry   *semreg.Registry
	Sessions   *session.Manager
	Recorder   *trace.Recorder
	Stager     ports.Stager
	Catalog    *catalog.Catalog
	Metrics    *observability.Metrics
	Prometheus *prometheus.Registry
	// Redis is set when the redis backend is configured.
	Redis backend.UniversalClient

	ownsRedis bool
}

// Option configures New.
type Option func(*builder)

type builder struct {
	logger    *slog.Logger
	matcher   ports.Matcher
	generator ports.Generator
	macros    ports.MacroEngine
	stager    ports.Stager
	sinks     []ports.TraceSink
	scope     orchestrator.ScopeFunc
	redis     backend.UniversalClient
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

// WithMatcher replaces the catalog matcher.
func WithMatcher(m ports.Matcher) Option {
	return func(b *builder) {
		b.matcher = m
	}
}

// WithGenerator replaces the catalog generator.
func WithGenerator(g ports.Generator) Option {
	return func(b *builder) {
		b.generator = g
	}
}

// WithMacros replaces the catalog macro engine.
func WithMacros(m ports.MacroEngine) Option {
	return func(b *builder) {
		b.macros = m
	}
}

// WithStager replaces the backend's default stager.
func WithStager(s ports.Stager) Option {
	return func(b *builder) {
		b.stager = s
	}
}

// WithTraceSink adds a trace sink.
func WithTraceSink(s ports.TraceSink) Option {
	return func(b *builder) {
		b.sinks = append(b.sinks, s)
	}
}

// WithAuditWriter writes every trace record as a JSON line to w.
func WithAuditWriter(w io.Writer) Option {
	return func(b *builder) {
		b.sinks = append(b.sinks, trace.NewLogSink(logging.NewJSON(w, slog.LevelInfo)))
	}
}

// WithScope sets how the generation scope of a session is obtained.
func WithScope(fn orchestrator.ScopeFunc) Option {
	return func(b *builder) {
		b.scope = fn
	}
}

// WithRedisClient uses client instead of dialing store.redis.addr.
func WithRedisClient(client backend.UniversalClient) Option {
	return func(b *builder) {
		b.redis = client
	}
}

// New wires a Gateway from cfg.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	b := &builder{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	g := &Gateway{}
	if b.generator == nil && cfg.Generator.Command != "" {
		b.generator = process.NewGenerator(cfg.Generator.Command,
			process.WithArgs(cfg.Generator.Args...),
			process.WithTimeout(cfg.Generator.Timeout),
		)
	}
	if cfg.Catalog.Path != "" {
		c, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		g.Catalog = c
		if b.matcher == nil {
			b.matcher = catalog.NewMatcher(c)
		}
		if b.generator == nil {
			b.generator = catalog.NewGenerator(c)
		}
		if b.macros == nil && len(c.Macros) > 0 {
			b.macros = catalog.NewMacros(c)
		}
	}
	if b.matcher == nil || b.generator == nil {
		return nil, ErrNoCollaborators
	}

	reg, err := semreg.NewRegistry(cfg.Policy, semreg.WithLogger(b.logger))
	if err != nil {
		return nil, err
	}
	g.Registry = reg

	var store ports.ChoiceStore
	sessionOpts := []session.Option{session.WithTTL(cfg.Store.TTL), session.WithLogger(b.logger)}
	switch cfg.Store.Backend {
	case config.StoreRedis:
		g.Redis = b.redis
		if g.Redis == nil {
			g.Redis = backend.NewClient(&backend.Options{
				Addr:     cfg.Store.Redis.Addr,
				Password: cfg.Store.Redis.Password,
				DB:       cfg.Store.Redis.DB,
			})
			g.ownsRedis = true
		}
		storeOpts := []redis.Option{redis.WithTTL(cfg.Store.TTL)}
		if cfg.Store.Redis.Prefix != "" {
			storeOpts = append(storeOpts, redis.WithPrefix(cfg.Store.Redis.Prefix))
		}
		store = redis.NewFromClient(g.Redis, storeOpts...)
		sessionOpts = append(sessionOpts, session.WithLocker(redis.NewLocker(g.Redis, lockPrefix)))
		b.sinks = append(b.sinks, redis.NewTraceSink(g.Redis, cfg.Trace.RedisKey))
		if b.stager == nil {
			b.stager = redis.NewStager(g.Redis, cfg.Stage.RedisKey)
		}
	default:
		store = memory.NewStore()
		if b.stager == nil {
			b.stager = memory.NewStager()
		}
	}
	if cfg.Store.Encryption.Key != "" {
		mw, err := encryptionMiddleware(cfg.Store.Encryption)
		if err != nil {
			return nil, err
		}
		store = middleware.Chain(store, mw)
	}
	g.Sessions = session.NewManager(store, sessionOpts...)
	g.Stager = b.stager

	recOpts := []trace.Option{trace.WithCapacity(cfg.Trace.Capacity), trace.WithLogger(b.logger)}
	for _, s := range b.sinks {
		if len(cfg.Trace.Redact) > 0 {
			if s, err = middleware.NewRedactingSink(s, cfg.Trace.Redact); err != nil {
				return nil, err
			}
		}
		recOpts = append(recOpts, trace.WithSink(s))
	}
	g.Recorder = trace.NewRecorder(recOpts...)

	g.Prometheus = prometheus.NewRegistry()
	g.Prometheus.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	g.Metrics = observability.NewMetrics(g.Prometheus)

	pipeOpts := []pipeline.Option{
		pipeline.WithTrustedGenerator(cfg.Generator.Trusted),
		pipeline.WithLogger(b.logger),
	}
	if b.macros != nil {
		pipeOpts = append(pipeOpts, pipeline.WithMacros(b.macros))
	}
	p := pipeline.New(reg, b.matcher, b.generator, pipeOpts...)

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(b.logger),
		orchestrator.WithHooks(observability.Chain(g.Metrics.Hooks(), observability.LogHooks(b.logger))),
	}
	if b.scope != nil {
		orchOpts = append(orchOpts, orchestrator.WithScope(b.scope))
	}
	g.Orchestrator = orchestrator.New(p, g.Sessions, g.Recorder, g.Stager, orchOpts...)

	b.logger.Info("Gateway ready",
		"mode", reg.Snapshot().Mode(),
		"policy_fingerprint", reg.Snapshot().Fingerprint(),
		"store", cfg.Store.Backend,
	)
	return g, nil
}

func encryptionMiddleware(cfg config.EncryptionConfig) (middleware.Middleware, error) {
	active, err := middleware.ParseKey(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("store.encryption.key: %w", err)
	}
	ec := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("store.encryption.fallback_keys[%d]: %w", i, err)
		}
		ec.FallbackKeys = append(ec.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(ec)
}

// MetricsHandler serves the gateway's Prometheus registry.
func (g *Gateway) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(g.Prometheus, promhttp.HandlerOpts{})
}

// Close releases the redis connection when New opened it.
func (g *Gateway) Close() error {
	if g.ownsRedis && g.Redis != nil {
		return g.Redis.Close()
	}
	return nil
}

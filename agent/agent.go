package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mohitkumar/govflow/action"
	"github.com/mohitkumar/govflow/analytics"
	"github.com/mohitkumar/govflow/cache"
	"github.com/mohitkumar/govflow/config"
	"github.com/mohitkumar/govflow/engine"
	"github.com/mohitkumar/govflow/flow"
	"github.com/mohitkumar/govflow/governance"
	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/metadata"
	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"github.com/mohitkumar/govflow/persistence/memory"
	"github.com/mohitkumar/govflow/persistence/postgres"
	"github.com/mohitkumar/govflow/persistence/redis"
	"github.com/mohitkumar/govflow/rest"
	"github.com/mohitkumar/govflow/service"
	"github.com/mohitkumar/govflow/util"
	"go.uber.org/zap"
)

type Agent struct {
	Config          config.Config
	storage         persistence.Storage
	stub            *governance.StubSystems
	client          governance.Client
	engine          *engine.FlowEngine
	statusCache     *cache.RunStatusCache
	runService      *service.RunService
	recoveryService *service.RecoveryService
	httpServer      *rest.Server
	shutdown        bool
	shutdowns       chan struct{}
	shutdownLock    sync.Mutex
	wg              sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		Config:    config,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupLogger,
		a.setupAnalytics,
		a.setupStorage,
		a.setupGovernance,
		a.setupEngine,
		a.setupRunService,
		a.setupRecoveryService,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupLogger() error {
	return logger.InitLogger(a.Config.LoggerConfig)
}

func (a *Agent) setupAnalytics() error {
	if err := analytics.InitDataCollector(a.Config.AnalyticsConfig); err != nil {
		return err
	}
	return engine.RegisterViews()
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_INMEM:
		a.storage = memory.NewMemoryStorage()
	case config.STORAGE_TYPE_REDIS:
		codecs := redis.Codecs{
			Run:        codecOf[model.Run](a.Config.EncoderDecoderType),
			Checkpoint: codecOf[model.Checkpoint](a.Config.EncoderDecoderType),
			Subject:    codecOf[model.Subject](a.Config.EncoderDecoderType),
			Artifact:   codecOf[model.GeneratedArtifact](a.Config.EncoderDecoderType),
		}
		rc := a.Config.RedisConfig
		a.storage = redis.NewRedisStorage(redis.Config{
			Addrs:          rc.Addrs,
			Namespace:      rc.Namespace,
			Password:       rc.Password,
			PoolSize:       rc.PoolSize,
			PartitionCount: rc.PartitionCount,
		}, codecs)
	case config.STORAGE_TYPE_POSTGRES:
		codecs := postgres.Codecs{
			Run:        codecOf[model.Run](a.Config.EncoderDecoderType),
			Checkpoint: codecOf[model.Checkpoint](a.Config.EncoderDecoderType),
			Subject:    codecOf[model.Subject](a.Config.EncoderDecoderType),
			Artifact:   codecOf[model.GeneratedArtifact](a.Config.EncoderDecoderType),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := postgres.NewPostgresStorage(ctx, postgres.Config{
			URL:      a.Config.PostgresConfig.URL,
			MaxConns: a.Config.PostgresConfig.MaxConns,
		}, codecs)
		if err != nil {
			return err
		}
		a.storage = s
	default:
		return fmt.Errorf("unknown storage implementation %q", a.Config.StorageType)
	}
	return nil
}

func codecOf[T any](t config.EncoderDecoderType) util.EncoderDecoder[T] {
	if t == config.MSGPACK_ENCODER_DECODER {
		return util.NewMsgpackEncoderDecoder[T]()
	}
	return util.NewJsonEncoderDecoder[T]()
}

// setupGovernance always builds the stub systems so they can be served over
// HTTP; the engine talks to them directly unless an HTTP client is configured.
func (a *Agent) setupGovernance() error {
	a.stub = governance.NewStubSystems(a.storage, a.storage)
	switch a.Config.GovernanceType {
	case config.GOVERNANCE_HTTP:
		tc := a.Config.ToolConfig
		a.client = governance.NewHttpClient(governance.HttpClientConfig{
			BaseURL:         tc.BaseURL,
			Timeout:         tc.Timeout,
			MaxRetries:      tc.MaxRetries,
			InitialInterval: tc.InitialInterval,
			MaxInterval:     tc.MaxInterval,
		})
	default:
		a.client = a.stub
	}
	return nil
}

func (a *Agent) setupEngine() error {
	ec := a.Config.EngineConfig
	ceilings := ec.MetricCeilings
	if len(ceilings) == 0 {
		ceilings = action.DefaultCeilings()
	}
	names := make([]string, 0, len(ec.ScriptRules))
	for name := range ec.ScriptRules {
		names = append(names, name)
	}
	sort.Strings(names)
	scripts := make([]action.ScriptRule, 0, len(names))
	for _, name := range names {
		scripts = append(scripts, action.ScriptRule{Name: name, Expression: ec.ScriptRules[name]})
	}
	rules, err := action.NewThresholdRules(ceilings, scripts)
	if err != nil {
		return err
	}
	f, err := flow.NewApprovalFlow(flow.Config{
		MaxRemediationAttempts:   ec.MaxRemediationAttempts,
		SensitiveClassifications: ec.SensitiveClassifications,
		Thresholds:               rules,
	}, a.client)
	if err != nil {
		return err
	}
	a.engine = engine.NewFlowEngine(f, a.storage)
	return nil
}

func (a *Agent) setupRunService() error {
	a.statusCache = cache.NewRunStatusCache(time.Minute)
	a.runService = service.NewRunService(a.engine, metadata.NewMetadataService(a.storage), a.storage, a.statusCache)
	return nil
}

func (a *Agent) setupRecoveryService() error {
	rc := a.Config.RecoveryConfig
	a.recoveryService = service.NewRecoveryService(a.engine, a.storage, a.statusCache, rc.Interval, rc.Concurrency, &a.wg)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.runService, a.stub)
	if err != nil {
		return err
	}
	a.httpServer.SetRecoveryService(a.recoveryService)
	return nil
}

func (a *Agent) Start() error {
	a.recoveryService.Start()
	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server stopped", zap.Error(err))
			_ = a.Shutdown()
		}
	}()
	return nil
}

// Done is closed once shutdown has begun.
func (a *Agent) Done() <-chan struct{} {
	return a.shutdowns
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			a.recoveryService.Stop()
			return nil
		},
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	if err := analytics.Close(); err != nil {
		logger.Error("error closing analytics collector", zap.Error(err))
	}
	_ = logger.Sync()
	return a.storage.Close()
}

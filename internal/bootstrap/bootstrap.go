package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"chunks-server-go/internal/domain/chunks"
	"chunks-server-go/internal/domain/dialogue"
	"chunks-server-go/internal/domain/eventbus"
	"chunks-server-go/internal/domain/llm"
	"chunks-server-go/internal/domain/scene"
	"chunks-server-go/internal/domain/session"
	"chunks-server-go/internal/domain/settings"
	platformconfig "chunks-server-go/internal/platform/config"
	platformerrors "chunks-server-go/internal/platform/errors"
	platformlogging "chunks-server-go/internal/platform/logging"
	platformobservability "chunks-server-go/internal/platform/observability"
	platformstorage "chunks-server-go/internal/platform/storage"
	httptransport "chunks-server-go/internal/transport/http"
	httpconvert "chunks-server-go/internal/transport/http/convert"
	httpgeneration "chunks-server-go/internal/transport/http/generation"
	httpsettings "chunks-server-go/internal/transport/http/settingsapi"
	httpsystem "chunks-server-go/internal/transport/http/system"
	"chunks-server-go/internal/transport/ws"
)

const shutdownGrace = 15 * time.Second

// Options are the command-line inputs of Run.
type Options struct {
	// ConfigPath overrides CHUNKS_CONFIG and ./config.yaml.
	ConfigPath string
	// DotEnv loads ./.env before reading configuration.
	DotEnv bool
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	opts                  Options
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	db                    *gorm.DB
	settingsStore         settings.Store
	settings              *settings.Service
	bus                   *eventbus.AsyncEventBus
	catalog               *scene.Catalog
	converter             *chunks.Converter
	orchestrator          *session.Orchestrator
	wsServer              *ws.Server
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context, opts Options) error {
	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := &appState{opts: opts}
	steps := InitGraph()
	err := executeInitSteps(rootCtx, steps, state)
	defer state.close()
	if err != nil {
		return err
	}

	logger := state.logger
	logBootstrapGraph(steps, logger)

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return fmt.Errorf("启动 Http 服务失败: %w", err)
	}

	logger.InfoTag("引导", "服务已成功启动")
	return waitForShutdown(signalCtx, cancel, logger, group)
}

// close releases everything the init steps acquired, newest first.
func (s *appState) close() {
	logger := s.logger
	if s.wsServer != nil {
		s.wsServer.Stop()
	}
	if s.orchestrator != nil {
		s.orchestrator.Wait()
	}
	if s.bus != nil {
		s.bus.Stop()
	}
	if s.settingsStore != nil {
		if err := s.settingsStore.Close(context.Background()); err != nil {
			logger.ErrorTag("Settings", "设置存储未正常关闭: %v", err)
		}
	}
	if s.db != nil {
		if err := platformstorage.Close(s.db); err != nil {
			logger.ErrorTag("引导", "数据库未正常关闭: %v", err)
		}
	}
	if shutdown := s.observabilityShutdown; shutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.WarnTag("引导", "可观测性未正常关闭: %v", err)
		}
	}
	if logger != nil {
		logger.Close()
	}
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("引导", "初始化依赖关系概览")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("引导", "%s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag("引导", "%s (%s) <- %s", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "settings:init-store",
			Title:     "Initialise settings store",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindSettings,
			Execute:   initSettingsStep,
		},
		{
			ID:        "events:init-bus",
			Title:     "Initialise event bus",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "session:init-pipeline",
			Title:     "Initialise generation pipeline",
			DependsOn: []string{"settings:init-store", "events:init-bus", "observability:setup-hooks"},
			Kind:      platformerrors.KindSession,
			Execute:   initPipelineStep,
		},
		{
			ID:        "transport:init-websocket",
			Title:     "Initialise websocket transport",
			DependsOn: []string{"session:init-pipeline"},
			Kind:      platformerrors.KindTransport,
			Execute:   initWebSocketStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().
		WithDotEnv(state.opts.DotEnv).
		WithPath(state.opts.ConfigPath).
		Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	if state.configPath == "" {
		state.configPath = "env"
	}
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}
	state.logger = logger

	logger.InfoTag(
		"引导",
		"日志模块就绪 [%s] %s",
		state.config.Log.Level,
		state.configPath,
	)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}

	shutdown, err := platformobservability.Setup(ctx, cfg, state.logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	if !strings.EqualFold(state.config.Settings.Driver, settings.DriverSQLite) {
		return nil
	}
	db, err := platformstorage.OpenSQLite(state.config.Settings.SQLite.DSN)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to initialize database", err)
	}
	state.db = db
	state.logger.InfoTag("引导", "数据库已就绪 %s", state.config.Settings.SQLite.DSN)
	return nil
}

func initSettingsStep(_ context.Context, state *appState) error {
	cfg := state.config.Settings
	store, err := settings.New(settings.Config{
		Driver: cfg.Driver,
		SQLite: &settings.SQLiteConfig{DSN: cfg.SQLite.DSN},
		Redis: &settings.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		},
	}, settings.Dependencies{SQLiteDB: state.db})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindSettings, "settings:init-store", "failed to create settings store", err)
	}
	state.settingsStore = store
	state.settings = settings.NewService(store, state.logger)
	state.logger.InfoTag("Settings", "设置存储已就绪 driver=%s", cfg.Driver)
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	// One worker keeps snapshot order per client.
	bus := eventbus.NewAsyncEventBus(1, state.logger)
	bus.Start()
	state.bus = bus
	return nil
}

func initPipelineStep(ctx context.Context, state *appState) error {
	catalog, err := scene.Default()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindSession, "session:init-pipeline", "failed to load scene catalog", err)
	}
	state.catalog = catalog

	llmCfg := state.config.LLM
	client := llm.New(llm.Options{
		RequestTimeout: llmCfg.RequestTimeout,
		StreamTimeout:  llmCfg.StreamTimeout,
	}, state.logger)

	state.settings.SetPublisher(state.bus)
	state.converter = chunks.NewConverter(client, llmCfg.ConvertModel, state.logger)
	state.orchestrator = session.New(ctx, session.Dependencies{
		Config:    state.settings,
		Dialogue:  dialogue.NewGenerator(client, llmCfg.DialogueModel, state.logger),
		Chunks:    chunks.NewExtractor(client, llmCfg.ChunkModel, state.logger),
		Scenes:    catalog,
		Publisher: state.bus,
		Logger:    state.logger,
	}, session.Options{ChunkDelay: state.config.Generation.ChunkDelay})

	state.logger.InfoTag("引导", "生成管线就绪 dialogue=%s chunks=%s convert=%s scenes=%d",
		llmCfg.DialogueModel, llmCfg.ChunkModel, llmCfg.ConvertModel, len(catalog.List()))
	return nil
}

func initWebSocketStep(ctx context.Context, state *appState) error {
	hub := ws.NewHub(state.logger)
	router := ws.NewRouter(hub, state.logger, ws.RouterOptions{BaseContext: ctx})
	server := ws.NewServer(state.config.Web.WebSocketPath, router, hub, state.logger)
	server.SetHandlerBuilder(ws.SnapshotHandlerBuilder(state.orchestrator, state.logger))

	if err := state.bus.Subscribe(eventbus.EventSessionUpdated, hub.PublishSnapshot); err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "transport:init-websocket", "failed to subscribe snapshot push", err)
	}
	if err := state.bus.Subscribe(eventbus.EventSettingsChanged, hub.NotifySettingsChanged); err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "transport:init-websocket", "failed to subscribe settings push", err)
	}
	state.wsServer = server
	return nil
}

func buildRouter(state *appState, groupCtx context.Context) (*httptransport.Router, error) {
	cfg := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Logger:      logger,
		Debug:       strings.EqualFold(cfg.Log.Level, "debug"),
		CORSOrigins: cfg.Server.CORSOrigins,
		StaticDir:   cfg.Web.StaticDir,
	})
	if err != nil {
		return nil, err
	}

	settingsService, err := httpsettings.NewService(state.settings, logger)
	if err != nil {
		return nil, err
	}
	generationService, err := httpgeneration.NewService(state.orchestrator, state.catalog, logger)
	if err != nil {
		return nil, err
	}
	convertService, err := httpconvert.NewService(state.converter, state.settings, cfg.Web.MaxUploadBytes, logger)
	if err != nil {
		return nil, err
	}
	systemService := httpsystem.NewService(state.wsServer, state.settings, logger)

	// 注册服务路由
	if err := systemService.Register(groupCtx, httpRouter.API); err != nil {
		return nil, err
	}
	if err := generationService.Register(groupCtx, httpRouter.API, httpRouter.Client); err != nil {
		return nil, err
	}
	if err := settingsService.Register(groupCtx, httpRouter.Client); err != nil {
		return nil, err
	}
	if err := convertService.Register(groupCtx, httpRouter.Client); err != nil {
		return nil, err
	}

	httptransport.RegisterDocs(httpRouter.Engine, logger)
	state.wsServer.Mount(httpRouter.Engine)
	return httpRouter, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	cfg := state.config
	logger := state.logger

	httpRouter, err := buildRouter(state, groupCtx)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "http:build-router", "failed to build http router", err)
	}

	addr := net.JoinHostPort(cfg.Server.IP, strconv.Itoa(cfg.Server.Port))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: httpRouter.Engine,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "Gin 服务已启动，访问地址 http://localhost:%d", cfg.Server.Port)
		logger.InfoTag("HTTP", "在线文档入口: http://localhost:%d/docs", cfg.Server.Port)

		go func() {
			<-groupCtx.Done()
			// hijacked websocket connections are not tracked by Shutdown
			state.wsServer.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP 服务关闭失败: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP 服务已优雅关闭")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP 服务启动失败: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case <-ctx.Done():
		logger.InfoTag("引导", "收到系统信号 %v，正在进行资源清理", context.Cause(ctx))
	case err := <-done:
		// a server exited on its own; report it after cleanup.
		cancel()
		if err != nil {
			logger.ErrorTag("引导", "服务异常退出: %v", err)
			return err
		}
		return nil
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("引导", "服务关闭过程中出现错误: %v", err)
			return err
		}
		logger.InfoTag("引导", "所有服务已成功关闭")
	case <-time.After(shutdownGrace):
		timeoutErr := errors.New("服务关闭超时")
		logger.ErrorTag("引导", "服务关闭超时，已强制退出")
		return timeoutErr
	}
	return nil
}

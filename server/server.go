package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"

	"github.com/customeros/mailchannel/api"
	"github.com/customeros/mailchannel/api/handlers"
	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/internal/cron"
	"github.com/customeros/mailchannel/internal/leader"
	"github.com/customeros/mailchannel/internal/listeners"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/repository"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/services"
	"github.com/customeros/mailchannel/services/accounts"
	"github.com/customeros/mailchannel/services/events"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	config       *config.Config
	log          logger.Logger
	db           *gorm.DB
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	elector      *leader.Elector
	cron         *cron.CronManager
	tracerCloser io.Closer
	workers      sync.WaitGroup
}

// NewServer accepts a nil db, sessions are then kept in memory
func NewServer(cfg *config.Config, log logger.Logger, db *gorm.DB) (*Server, error) {
	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, log)
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize jaeger tracer")
	}
	opentracing.SetGlobalTracer(tracer)

	repos := repository.InitRepositories(db)

	svcs, err := services.InitServices(cfg, log, repos)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	var k8s kubernetes.Interface
	if !cfg.AppConfig.LocalDev {
		k8s = leader.NewKubernetesClient(log)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		config:       cfg,
		log:          log,
		db:           db,
		router:       router,
		services:     svcs,
		repositories: repos,
		elector:      leader.NewElector(k8s, cfg.AppConfig.PodName, cfg.AppConfig.Namespace, log.Named("leader")),
		cron:         cron.NewCronManager(cfg, log.Named("cron"), svcs.Status),
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:              ":" + cfg.AppConfig.APIPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) Initialize(ctx context.Context) error {
	api.RegisterRoutes(s.router, handlers.InitHandlers(s.services.Status, s.services.Outbound), s.config.AppConfig.APIKey)

	if s.services.EventsService != nil {
		subscriber := s.services.EventsService.Subscriber
		subscriber.RegisterListener(listeners.NewReplyRequestListener(s.log.Named("listener"), s.services.Outbound))
		if err := subscriber.ListenQueue(events.QueueReplyRequests); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		s.log.Errorf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

// goWorker runs fn in a tracked goroutine; panics are recorded and the worker is not restarted
func (s *Server) goWorker(name string, fn func()) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer s.recoverWithJaeger(name)
		fn()
	}()
}

func (s *Server) startMonitors(ctx context.Context) {
	for _, accountID := range accounts.ListAccountIDs() {
		accountID := accountID
		s.goWorker("monitor."+accountID, func() {
			s.log.Infof("[%s] starting AgentMail monitor", accountID)
			if err := s.services.Monitor.Run(ctx, accountID); err != nil {
				s.log.Errorf("[%s] AgentMail monitor stopped: %v", accountID, err)
				return
			}
			s.log.Infof("[%s] AgentMail monitor stopped", accountID)
		})
	}
}

func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Initialize(ctx); err != nil {
		return err
	}

	s.goWorker("monitor_leader", func() {
		s.elector.Run(ctx, leader.LeaseMonitor, leader.Callbacks{
			OnStartedLeading: s.startMonitors,
		})
	})

	s.goWorker("cron_leader", func() {
		s.elector.Run(ctx, leader.LeaseCron, leader.Callbacks{
			OnStartedLeading: func(leaderCtx context.Context) {
				s.goWorker("cron", func() {
					s.cron.Run(leaderCtx)
				})
			},
		})
	})

	go func() {
		defer s.recoverWithJaeger("http_server")
		s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	}()
	s.log.Info("MailChannel is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown(cancel)
}

func (s *Server) waitForShutdown(cancel context.CancelFunc) error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	s.log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	}

	cancel()
	workersDone := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(workersDone)
	}()
	select {
	case <-workersDone:
		s.log.Info("Monitors and cron stopped")
	case <-shutdownCtx.Done():
		s.log.Warn("Workers did not stop in time, forcing exit")
	}

	if err := s.services.Close(); err != nil {
		s.log.Errorf("Events shutdown error: %v", err)
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if s.tracerCloser != nil {
		_ = s.tracerCloser.Close()
	}
	_ = s.log.Sync()
	return nil
}

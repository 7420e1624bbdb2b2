package services

import (
	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/host"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/repository"
	"github.com/customeros/mailchannel/services/accounts"
	"github.com/customeros/mailchannel/services/agentmail"
	"github.com/customeros/mailchannel/services/attachments"
	"github.com/customeros/mailchannel/services/email_filter"
	"github.com/customeros/mailchannel/services/events"
	"github.com/customeros/mailchannel/services/monitor"
	"github.com/customeros/mailchannel/services/outbound"
	"github.com/customeros/mailchannel/services/status"
	"github.com/customeros/mailchannel/services/storage"
	"github.com/customeros/mailchannel/services/thread"
)

type Services struct {
	// EventsService is nil when RABBITMQ_URL is not set
	EventsService *events.EventsService
	Publisher     interfaces.EventPublisher
	ChannelConfig *config.ChannelConfigLoader
	Clients       *agentmail.ClientCache
	State         *monitor.StateStore
	HostRuntime   *interfaces.HostRuntime
	Outbound      interfaces.OutboundService
	Monitor       *monitor.Monitor
	Status        *status.Service
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	s := &Services{
		ChannelConfig: config.NewChannelConfigLoader(cfg.AppConfig.ChannelConfigFile),
		Clients:       agentmail.NewClientCache(cfg.AgentMailAPIConfig, log.Named("agentmail")),
		State:         monitor.NewStateStore(),
	}

	if cfg.AppConfig.RabbitMQURL != "" {
		eventsService, err := events.NewEventsService(cfg.AppConfig.RabbitMQURL, log.Named("events"), events.DefaultPublisherConfig())
		if err != nil {
			return nil, err
		}
		s.EventsService = eventsService
		s.Publisher = eventsService.Publisher
	} else {
		log.Warn("RABBITMQ_URL not set, domain events are disabled")
	}

	var archive interfaces.AttachmentArchive
	objectStorage, err := storage.NewR2StorageService(cfg.R2StorageConfig)
	if err != nil {
		return nil, err
	}
	if objectStorage != nil {
		archive = storage.NewAttachmentArchive(objectStorage)
	}

	s.HostRuntime = host.NewHostRuntime(host.Dependencies{
		ChannelConfig: s.ChannelConfig,
		Sessions:      repos.SessionRepository,
		Agent:         host.NewAgentClient(cfg.AgentConfig),
		Publisher:     s.Publisher,
	}, log.Named("host"))

	var outboundOpts []outbound.Option
	var monitorOpts []monitor.Option
	if s.Publisher != nil {
		outboundOpts = append(outboundOpts, outbound.WithEventPublisher(s.Publisher))
		monitorOpts = append(monitorOpts, monitor.WithEventPublisher(s.Publisher))
	}
	s.Outbound = outbound.NewOutboundService(s.HostRuntime.Config, s.Clients, log.Named("outbound"), outboundOpts...)

	s.Monitor = monitor.NewMonitor(
		*s.HostRuntime,
		s.Clients,
		s.State,
		email_filter.NewEmailFilterService(),
		thread.NewThreadService(log.Named("thread")),
		attachments.NewDownloader(cfg.AgentMailAPIConfig.TempDir, archive, log.Named("attachments")),
		s.Outbound,
		monitorOpts...,
	)

	s.Status = status.NewService(s.HostRuntime.Config, s.Clients, s.State, accounts.OSEnv)
	return s, nil
}

func (s *Services) Close() error {
	if s.EventsService == nil {
		return nil
	}
	return s.EventsService.Close()
}

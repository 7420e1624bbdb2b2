package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/host"
	"github.com/customeros/mailchannel/internal/database"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/repository"
	"github.com/customeros/mailchannel/server"
	"github.com/customeros/mailchannel/services/accounts"
	"github.com/customeros/mailchannel/services/agentmail"
	"github.com/customeros/mailchannel/services/events"
	"github.com/customeros/mailchannel/services/monitor"
	"github.com/customeros/mailchannel/services/setup"
	"github.com/customeros/mailchannel/services/status"
)

func main() {
	app := &cli.App{
		Name:  "mailchannel",
		Usage: "bridge an AgentMail inbox to an agent runtime",
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Start the application server",
				Action: runServer,
			},
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: runMigrate,
			},
			{
				Name:  "probe",
				Usage: "Check the configured inbox and print the result as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account", Value: accounts.DefaultAccountID},
				},
				Action: runProbe,
			},
			{
				Name:   "status",
				Usage:  "Print account status, issues and warnings as JSON",
				Action: runStatus,
			},
			{
				Name:  "setup",
				Usage: "Write AgentMail credentials to the channel config file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token"},
					&cli.StringFlag{Name: "email-address"},
					&cli.StringFlag{Name: "name"},
					&cli.BoolFlag{Name: "use-env", Usage: "read AGENTMAIL_TOKEN and AGENTMAIL_EMAIL_ADDRESS at runtime"},
				},
				Action: runSetup,
			},
			{
				Name:  "inboxes",
				Usage: "Manage AgentMail inboxes",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Action: runInboxesList,
					},
					{
						Name:      "create",
						ArgsUsage: "<username[@domain]>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "display-name"},
						},
						Action: runInboxesCreate,
					},
				},
			},
			{
				Name:  "reply",
				Usage: "Queue a reply to an inbound message on the reply request queue",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message-id", Required: true},
					&cli.StringFlag{Name: "text", Required: true},
					&cli.StringFlag{Name: "media-url"},
					&cli.StringFlag{Name: "account"},
				},
				Action: runReply,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, err
	}
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()
	return cfg, appLogger, nil
}

func runServer(c *cli.Context) error {
	cfg, appLogger, err := loadConfig()
	if err != nil {
		return err
	}
	appLogger.Info("MailChannel starting up...")

	db, err := database.InitSessionDatabase(cfg.DatabaseConfig, appLogger)
	if err != nil {
		return errors.Wrap(err, "session database initialization failed")
	}

	srv, err := server.NewServer(cfg, appLogger, db)
	if err != nil {
		return errors.Wrap(err, "server setup failed")
	}
	if err := srv.Run(); err != nil {
		return errors.Wrap(err, "server startup failed")
	}

	appLogger.Info("Shutdown complete")
	return nil
}

func runMigrate(c *cli.Context) error {
	cfg, appLogger, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.InitSessionDatabase(cfg.DatabaseConfig, appLogger)
	if err != nil {
		return err
	}
	if err := repository.MigrateDB(cfg.DatabaseConfig, db); err != nil {
		return errors.Wrap(err, "database migration failed")
	}
	appLogger.Info("Database migration completed successfully")
	return nil
}

func newStatusService(cfg *config.Config, appLogger logger.Logger) *status.Service {
	loader := host.NewConfigLoader(config.NewChannelConfigLoader(cfg.AppConfig.ChannelConfigFile))
	clients := agentmail.NewClientCache(cfg.AgentMailAPIConfig, appLogger)
	return status.NewService(loader, clients, monitor.NewStateStore(), accounts.OSEnv)
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func runProbe(c *cli.Context) error {
	cfg, appLogger, err := loadConfig()
	if err != nil {
		return err
	}
	probe := newStatusService(cfg, appLogger).ProbeAccount(c.Context, c.String("account"))
	if err := printJSON(probe); err != nil {
		return err
	}
	if !probe.OK {
		return cli.Exit("", 1)
	}
	return nil
}

func runStatus(c *cli.Context) error {
	cfg, appLogger, err := loadConfig()
	if err != nil {
		return err
	}
	report, err := newStatusService(cfg, appLogger).Report(c.Context, false)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runSetup(c *cli.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	input := setup.Input{
		Token:        c.String("token"),
		EmailAddress: c.String("email-address"),
		Name:         c.String("name"),
		UseEnv:       c.Bool("use-env"),
	}
	if err := setup.ValidateInput(input); err != nil {
		return err
	}

	loader := config.NewChannelConfigLoader(cfg.AppConfig.ChannelConfigFile)
	hostConfig, err := loader.Load()
	if err != nil {
		return err
	}
	next := setup.ApplyAccountConfig(hostConfig, input)
	if strings.TrimSpace(input.Name) != "" {
		next = setup.ApplyAccountName(next, accounts.DefaultAccountID, input.Name)
	}
	if err := loader.Save(next); err != nil {
		return err
	}

	account := accounts.ResolveAccount(next, accounts.DefaultAccountID, accounts.OSEnv())
	for _, line := range setup.OnboardingStatus(account).StatusLines {
		fmt.Println(line)
	}
	for _, warning := range status.CollectWarnings(account) {
		fmt.Println(warning)
	}
	fmt.Printf("Wrote %s\n", loader.Path())
	return nil
}

func providerClient(c *cli.Context) (*agentmail.ClientCache, string, error) {
	cfg, appLogger, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	hostConfig, err := config.NewChannelConfigLoader(cfg.AppConfig.ChannelConfigFile).Load()
	if err != nil {
		return nil, "", err
	}
	creds := accounts.ResolveCredentials(hostConfig.AgentMail(), accounts.OSEnv())
	return agentmail.NewClientCache(cfg.AgentMailAPIConfig, appLogger), creds.APIKey, nil
}

func runInboxesList(c *cli.Context) error {
	clients, apiKey, err := providerClient(c)
	if err != nil {
		return err
	}
	client, err := clients.Client(apiKey)
	if err != nil {
		return err
	}
	ids, err := setup.ListInboxes(c.Context, client)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runInboxesCreate(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: mailchannel inboxes create <username[@domain]>", 2)
	}
	clients, apiKey, err := providerClient(c)
	if err != nil {
		return err
	}
	client, err := clients.Client(apiKey)
	if err != nil {
		return err
	}
	id, err := setup.CreateInbox(c.Context, client, c.Args().First(), c.String("display-name"))
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runReply(c *cli.Context) error {
	cfg, appLogger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.AppConfig.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required to queue replies")
	}

	publisher, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, appLogger, events.DefaultPublisherConfig())
	if err != nil {
		return err
	}
	defer publisher.Close()

	return publisher.PublishReplyRequest(c.Context, dto.AgentMailReplyRequested{
		ReplyToID: c.String("message-id"),
		AccountID: c.String("account"),
		Text:      c.String("text"),
		MediaURL:  c.String("media-url"),
	})
}

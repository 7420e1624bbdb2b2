package cron

import (
	"context"
	"sync"

	cronv3 "github.com/robfig/cron/v3"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/services/accounts"
	"github.com/customeros/mailchannel/services/status"
)

const (
	JobHeartbeat    = "heartbeat"
	JobAccountProbe = "account_probe"
)

// AccountProber is satisfied by status.Service
type AccountProber interface {
	ProbeAccount(ctx context.Context, accountID string) status.Probe
}

type CronManager struct {
	cfg      *config.Config
	log      logger.Logger
	prober   AccountProber
	mutex    sync.Mutex
	cron     *cronv3.Cron
	stopCh   chan struct{}
	stopOnce sync.Once
	jobIDs   map[string]cronv3.EntryID
	probeMu  sync.Mutex
}

func NewCronManager(cfg *config.Config, log logger.Logger, prober AccountProber) *CronManager {
	return &CronManager{
		cfg:    cfg,
		log:    log,
		prober: prober,
		stopCh: make(chan struct{}),
		jobIDs: make(map[string]cronv3.EntryID),
	}
}

// Run starts the scheduler and stops it when ctx is done
func (cm *CronManager) Run(ctx context.Context) {
	if err := cm.StartCron(); err != nil {
		cm.log.Errorf("Failed to start cron manager: %v", err)
		return
	}
	<-ctx.Done()
	cm.StopCron()
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if cm.cron != nil {
		return nil
	}

	cm.log.Info("Starting cron manager")
	c := cronv3.New(
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	)
	if err := cm.registerJobs(c); err != nil {
		return err
	}
	c.Start()
	cm.cron = c
	return nil
}

// StopCron waits for running jobs; the manager can be started again afterwards
func (cm *CronManager) StopCron() {
	cm.mutex.Lock()
	c := cm.cron
	cm.cron = nil
	cm.mutex.Unlock()

	if c != nil {
		cm.log.Info("Stopping cron manager")
		<-c.Stop().Done()
	}
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	cm.StopCron()
	cm.stopOnce.Do(func() {
		close(cm.stopCh)
	})
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) error {
	cronConfig := cm.cfg.CronConfig
	if cronConfig == nil {
		cronConfig = &config.CronConfig{}
	}

	if cronConfig.CronScheduleHeartbeat != "" {
		podName := cm.cfg.AppConfig.PodName
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			return err
		}
		cm.jobIDs[JobHeartbeat] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cronConfig.CronScheduleAccountProbe != "" && cm.prober != nil {
		id, err := c.AddFunc(cronConfig.CronScheduleAccountProbe, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.probeAccounts()
		})
		if err != nil {
			return err
		}
		cm.jobIDs[JobAccountProbe] = id
		cm.log.Infof("Registered account probe job with schedule: %s", cronConfig.CronScheduleAccountProbe)
	}
	return nil
}

func (cm *CronManager) probeAccounts() {
	cm.probeMu.Lock()
	defer cm.probeMu.Unlock()

	span, ctx := tracing.StartTracerSpan(context.Background(), "CronManager.probeAccounts")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	for _, accountID := range accounts.ListAccountIDs() {
		probe := cm.prober.ProbeAccount(ctx, accountID)
		if !probe.OK && probe.Error != "" {
			cm.log.Warnf("[%s] account probe failed: %s", accountID, probe.Error)
			continue
		}
		cm.log.Debugf("[%s] account probe ok=%v in %dms", accountID, probe.OK, probe.ElapsedMs)
	}
}

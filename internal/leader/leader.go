package leader

import (
	"context"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/mailchannel/internal/logger"
)

const (
	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second

	LeaseMonitor = "mailchannel-monitor-leader"
	LeaseCron    = "mailchannel-cron-leader"
)

type Callbacks struct {
	// OnStartedLeading receives a context cancelled when leadership is lost
	OnStartedLeading func(ctx context.Context)
	OnStoppedLeading func()
}

type Elector struct {
	k8s       kubernetes.Interface
	identity  string
	namespace string
	log       logger.Logger
}

// NewKubernetesClient returns nil outside a cluster
func NewKubernetesClient(log logger.Logger) kubernetes.Interface {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Infof("not running in kubernetes, leader election disabled: %v", err)
		return nil
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Warnf("failed creating kubernetes client, leader election disabled: %v", err)
		return nil
	}
	return client
}

// NewElector runs callbacks locally when k8s is nil
func NewElector(k8s kubernetes.Interface, identity, namespace string, log logger.Logger) *Elector {
	return &Elector{
		k8s:       k8s,
		identity:  identity,
		namespace: namespace,
		log:       log,
	}
}

// Run blocks until ctx is done, campaigning again each time leadership is lost
func (e *Elector) Run(ctx context.Context, leaseName string, callbacks Callbacks) {
	if e.k8s == nil {
		e.runLocal(ctx, leaseName, callbacks)
		return
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      leaseName,
			Namespace: e.namespace,
		},
		Client: e.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: e.identity,
		},
	}

	elector, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            lock,
		ReleaseOnCancel: true,
		LeaseDuration:   LeaseDuration,
		RenewDeadline:   RenewDeadline,
		RetryPeriod:     RetryPeriod,
		Name:            leaseName,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(leaderCtx context.Context) {
				e.log.Infof("%s: %s acquired leadership", leaseName, e.identity)
				if callbacks.OnStartedLeading != nil {
					callbacks.OnStartedLeading(leaderCtx)
				}
			},
			OnStoppedLeading: func() {
				e.log.Infof("%s: %s lost leadership", leaseName, e.identity)
				if callbacks.OnStoppedLeading != nil {
					callbacks.OnStoppedLeading()
				}
			},
			OnNewLeader: func(identity string) {
				e.log.Infof("%s: new leader elected: %s", leaseName, identity)
			},
		},
	})
	if err != nil {
		e.log.Warnf("%s: leader election failed, falling back to local mode: %v", leaseName, err)
		e.runLocal(ctx, leaseName, callbacks)
		return
	}

	for ctx.Err() == nil {
		elector.Run(ctx)
	}
}

func (e *Elector) runLocal(ctx context.Context, leaseName string, callbacks Callbacks) {
	e.log.Infof("%s: running in local mode", leaseName)
	if callbacks.OnStartedLeading != nil {
		callbacks.OnStartedLeading(ctx)
	}
	<-ctx.Done()
	if callbacks.OnStoppedLeading != nil {
		callbacks.OnStoppedLeading()
	}
}

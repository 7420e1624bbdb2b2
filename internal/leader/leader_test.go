package leader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/customeros/mailchannel/internal/logger"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func TestElector_LocalModeLeadsUntilCancelled(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	elector := NewElector(nil, "pod-1", "default", getLogger())
	started := make(chan struct{})
	stopped := make(chan struct{})
	done := make(chan struct{})

	// Act
	go func() {
		defer close(done)
		elector.Run(ctx, LeaseMonitor, Callbacks{
			OnStartedLeading: func(ctx context.Context) { close(started) },
			OnStoppedLeading: func() { close(stopped) },
		})
	}()

	// Assert
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("local elector never started leading")
	}
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("local elector never stopped leading")
	}
	<-done
}

func TestElector_AcquiresLeaseWithKubernetes(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	elector := NewElector(fake.NewSimpleClientset(), "pod-1", "default", getLogger())
	started := make(chan struct{})
	done := make(chan struct{})

	// Act
	go func() {
		defer close(done)
		elector.Run(ctx, LeaseCron, Callbacks{
			OnStartedLeading: func(leaderCtx context.Context) {
				close(started)
				<-leaderCtx.Done()
			},
		})
	}()

	// Assert
	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("elector never acquired the lease")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("elector did not return after cancel")
	}
	assert.Error(t, ctx.Err())
}

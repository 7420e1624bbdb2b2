package host

import (
	"context"
	"sync"
	"time"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/enum"
)

type replyJob struct {
	ctx     context.Context
	payload dto.ReplyPayload
	kind    enum.ReplyKind
}

// replyDispatcher delivers payloads one at a time, in the order they were queued
type replyDispatcher struct {
	options dto.ReplyDispatcherOptions
	sleep   func(ctx context.Context, d time.Duration)

	mutex  sync.Mutex
	idle   bool
	queue  chan replyJob
	done   chan struct{}
	blocks int
}

func NewReplyDispatcher(options dto.ReplyDispatcherOptions) interfaces.ReplyDispatcher {
	return newReplyDispatcher(options, sleepContext)
}

func newReplyDispatcher(options dto.ReplyDispatcherOptions, sleep func(ctx context.Context, d time.Duration)) *replyDispatcher {
	d := &replyDispatcher{
		options: options,
		sleep:   sleep,
		queue:   make(chan replyJob, 64),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Dispatch returns false once the dispatcher has been marked idle
func (d *replyDispatcher) Dispatch(ctx context.Context, payload dto.ReplyPayload, kind enum.ReplyKind) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.idle {
		return false
	}
	d.queue <- replyJob{ctx: ctx, payload: payload, kind: kind}
	return true
}

// MarkIdle stops accepting payloads and waits for queued deliveries
func (d *replyDispatcher) MarkIdle() {
	d.mutex.Lock()
	if !d.idle {
		d.idle = true
		close(d.queue)
	}
	d.mutex.Unlock()
	<-d.done
}

func (d *replyDispatcher) run() {
	defer close(d.done)

	for job := range d.queue {
		if job.kind == enum.ReplyBlock {
			if d.blocks > 0 {
				d.sleep(job.ctx, pickDelay(d.options.HumanDelay))
			}
			d.blocks++
		}
		if d.options.Deliver == nil {
			continue
		}
		if err := d.options.Deliver(job.ctx, job.payload, dto.ReplyInfo{Kind: job.kind}); err != nil && d.options.OnError != nil {
			d.options.OnError(err, dto.ReplyInfo{Kind: job.kind})
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

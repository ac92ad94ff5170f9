package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vogiaan1904/vcping/internal/debounce"
	"github.com/vogiaan1904/vcping/internal/domain"
	appErrors "github.com/vogiaan1904/vcping/internal/errors"
	"github.com/vogiaan1904/vcping/internal/notify"
	"github.com/vogiaan1904/vcping/internal/occupancy"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

type Notifier interface {
	NotifyActivated(ctx context.Context, communityID, channelID string, actor domain.Profile) (notify.Report, error)
	NotifyDeactivated(ctx context.Context, communityID, channelID string, actor domain.Profile) (notify.Report, error)
}

// TransitionPublisher announces confirmed transitions to other services.
type TransitionPublisher interface {
	PublishActivated(ctx context.Context, tn domain.Transition) error
	PublishDeactivated(ctx context.Context, tn domain.Transition) error
}

type Config struct {
	LaneBuffer int
}

type Status struct {
	IsRunning            bool      `json:"is_running"`
	StartedAt            time.Time `json:"started_at,omitempty"`
	Lanes                int       `json:"lanes"`
	PendingConfirmations int       `json:"pending_confirmations"`
	EventsHandled        int64     `json:"events_handled"`
	Activations          int64     `json:"activations"`
	Deactivations        int64     `json:"deactivations"`
	AbortedActivations   int64     `json:"aborted_activations"`
}

type job func(ctx context.Context)

// Dispatcher routes raw voice-state changes to per-community lanes. A lane
// runs its jobs one at a time in arrival order; lanes run concurrently.
type Dispatcher struct {
	tracker  *occupancy.Tracker
	guard    *debounce.Guard
	notifier Notifier
	pub      TransitionPublisher
	l        logger.Logger
	cfg      Config

	mu        sync.Mutex
	isRunning bool
	stopped   bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	lanes     map[string]chan job
	wg        sync.WaitGroup

	eventsHandled atomic.Int64
	activations   atomic.Int64
	deactivations atomic.Int64
	aborted       atomic.Int64
}

// NewDispatcher wires the engine together. pub may be nil when transitions
// are not published anywhere.
func NewDispatcher(
	tracker *occupancy.Tracker,
	guard *debounce.Guard,
	notifier Notifier,
	pub TransitionPublisher,
	cfg Config,
	l logger.Logger,
) *Dispatcher {
	if cfg.LaneBuffer <= 0 {
		cfg.LaneBuffer = 64
	}
	return &Dispatcher{
		tracker:  tracker,
		guard:    guard,
		notifier: notifier,
		pub:      pub,
		l:        l,
		cfg:      cfg,
		lanes:    make(map[string]chan job),
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return errors.New("dispatcher is already running")
	}
	if d.stopped {
		return errors.New("dispatcher cannot be restarted")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.isRunning = true
	d.startedAt = time.Now()

	d.l.Infof(ctx, "Dispatcher started, confirm delay %s", d.guard.Delay())
	return nil
}

// Stop drops pending confirmations and queued jobs and waits for running
// jobs to return.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return errors.New("dispatcher is not running")
	}
	d.isRunning = false
	d.stopped = true
	d.cancel()
	d.mu.Unlock()

	d.guard.Stop()
	d.wg.Wait()

	d.l.Info(context.Background(), "Dispatcher stopped")
	return nil
}

// Dispatch queues raw on its community's lane. It blocks only while the
// lane is full.
func (d *Dispatcher) Dispatch(ctx context.Context, raw domain.RawVoiceState) error {
	if raw.TraceID == "" {
		raw.TraceID = uuid.NewString()
	}
	return d.enqueue(ctx, raw.CommunityID, func(laneCtx context.Context) {
		d.Handle(laneCtx, raw)
	})
}

// Handle processes raw synchronously on the calling goroutine.
func (d *Dispatcher) Handle(ctx context.Context, raw domain.RawVoiceState) {
	ctx = logger.WithFields(ctx, d.l, "community_id", raw.CommunityID, "trace_id", raw.TraceID)
	d.eventsHandled.Add(1)

	for _, ev := range Normalize(raw) {
		tn := d.tracker.Observe(ctx, ev)
		if tn == nil {
			continue
		}

		switch tn.Kind {
		case domain.TransitionActivatedProvisional:
			d.scheduleConfirmation(ctx, *tn)
		case domain.TransitionDeactivated:
			d.deactivate(ctx, *tn)
		}
	}
}

func (d *Dispatcher) scheduleConfirmation(ctx context.Context, tn domain.Transition) {
	scheduled := d.guard.Schedule(ctx, tn.ChannelID, func() {
		err := d.enqueue(context.Background(), tn.CommunityID, func(laneCtx context.Context) {
			laneCtx = logger.WithFields(laneCtx, d.l, "community_id", tn.CommunityID, "channel_id", tn.ChannelID)
			d.Confirm(laneCtx, tn)
		})
		if err != nil {
			d.l.Warnf(ctx, "dispatch.Dispatcher.scheduleConfirmation: dropping confirmation for channel %s: %v", tn.ChannelID, err)
		}
	})
	if scheduled {
		d.l.Infof(ctx, "Channel %s provisionally active, confirming in %s", tn.ChannelID, d.guard.Delay())
	}
}

// Confirm re-checks a provisional activation and notifies subscribers when
// the channel is still occupied.
func (d *Dispatcher) Confirm(ctx context.Context, tn domain.Transition) domain.ConfirmOutcome {
	outcome := d.tracker.Confirm(ctx, tn.CommunityID, tn.ChannelID)
	if outcome != domain.ConfirmedActive {
		d.aborted.Add(1)
		d.l.Infof(ctx, "Activation of channel %s aborted", tn.ChannelID)
		return outcome
	}

	d.activations.Add(1)
	d.publish(ctx, tn, true)

	if _, err := d.notifier.NotifyActivated(ctx, tn.CommunityID, tn.ChannelID, tn.Actor); err != nil {
		d.l.Errorf(ctx, "dispatch.Dispatcher.Confirm: %v", err)
	}
	return outcome
}

func (d *Dispatcher) deactivate(ctx context.Context, tn domain.Transition) {
	d.deactivations.Add(1)
	d.publish(ctx, tn, false)

	if _, err := d.notifier.NotifyDeactivated(ctx, tn.CommunityID, tn.ChannelID, tn.Actor); err != nil {
		d.l.Errorf(ctx, "dispatch.Dispatcher.deactivate: %v", err)
	}
}

func (d *Dispatcher) publish(ctx context.Context, tn domain.Transition, activated bool) {
	if d.pub == nil {
		return
	}

	var err error
	if activated {
		err = d.pub.PublishActivated(ctx, tn)
	} else {
		err = d.pub.PublishDeactivated(ctx, tn)
	}
	if err != nil {
		d.l.Warnf(ctx, "dispatch.Dispatcher.publish: %v", err)
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, communityID string, j job) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return appErrors.ErrDispatcherStopped
	}

	lane, ok := d.lanes[communityID]
	if !ok {
		lane = make(chan job, d.cfg.LaneBuffer)
		d.lanes[communityID] = lane
		laneCtx := d.ctx
		d.wg.Go(func() { d.runLane(laneCtx, lane) })
	}
	laneCtx := d.ctx
	d.mu.Unlock()

	select {
	case lane <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-laneCtx.Done():
		return appErrors.ErrDispatcherStopped
	}
}

func (d *Dispatcher) runLane(ctx context.Context, lane chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-lane:
			j(ctx)
		}
	}
}

func (d *Dispatcher) GetStatus() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Status{
		IsRunning:            d.isRunning,
		StartedAt:            d.startedAt,
		Lanes:                len(d.lanes),
		PendingConfirmations: d.guard.PendingCount(),
		EventsHandled:        d.eventsHandled.Load(),
		Activations:          d.activations.Load(),
		Deactivations:        d.deactivations.Load(),
		AbortedActivations:   d.aborted.Load(),
	}
}

// Package dispatch is the coordinator that streams recipients through
// rendering, quota admission, a channel adapter, and delivery-store
// bookkeeping without ever materializing the full recipient list.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/broadwing/dispatch/internal/channel"
	"github.com/broadwing/dispatch/internal/delivery"
	"github.com/broadwing/dispatch/internal/domain"
	"github.com/broadwing/dispatch/internal/render"
	"github.com/broadwing/dispatch/pkg/adaptererror"
	"github.com/broadwing/dispatch/pkg/logger"
	"github.com/broadwing/dispatch/pkg/quota"
)

// Options configures one dispatch run.
type Options struct {
	BatchSize       int // reserved for ingest-side batching; the loop itself always streams one recipient at a time
	PerMessageDelay time.Duration
	DryRun          bool
	Split           render.SplitConfig // applied to the WhatsApp body when its strategy is non-empty
}

// ProgressEvent reports the outcome of one send, for a caller streaming
// session progress to a UI or log.
type ProgressEvent struct {
	Recipient domain.Recipient
	Channel   domain.Channel
	Record    *domain.DeliveryRecord
	Result    channel.Result
}

// maxQuotaWaitPerPoll caps how long one admission-wait sleep can run
// before the loop rechecks cancellation.
const maxQuotaWaitPerPoll = 5 * time.Second

// Dispatcher wires together the quota manager, delivery store, rendering,
// and one adapter per channel into the send loop described by the
// coordinator's contract.
type Dispatcher struct {
	Quota             *quota.Manager
	Store             *delivery.Store
	Adapters          map[domain.Channel]channel.Adapter
	KindForChannel    func(domain.Channel) string
	WorkersPerChannel int
	MaxRetries        int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	Logger            logger.Logger
}

func (d *Dispatcher) workers() int {
	if d.WorkersPerChannel > 0 {
		return d.WorkersPerChannel
	}
	return 4
}

func (d *Dispatcher) maxRetries() int {
	if d.MaxRetries > 0 {
		return d.MaxRetries
	}
	return 3
}

func (d *Dispatcher) backoffBase() time.Duration {
	if d.BackoffBase > 0 {
		return d.BackoffBase
	}
	return 1 * time.Second
}

func (d *Dispatcher) backoffCap() time.Duration {
	if d.BackoffCap > 0 {
		return d.BackoffCap
	}
	return 5 * time.Minute
}

func (d *Dispatcher) kindFor(ch domain.Channel) string {
	if d.KindForChannel != nil {
		return d.KindForChannel(ch)
	}
	return string(ch)
}

// sendJob is one channel's ordered message sequence for one recipient.
// Messages beyond index 0 only occur for a split WhatsApp body; a worker
// processes them in order so a multi-part sequence is never interleaved
// with another job on the same worker.
type sendJob struct {
	recipient domain.Recipient
	channel   domain.Channel
	messages  []domain.RenderedMessage
}

// run holds everything the producer, workers, and retry goroutines of a
// single Run call share. pending tracks every job that has been handed
// out (including ones still asleep in a retry backoff) so the queues are
// never closed while a retry goroutine might still write to them.
type run struct {
	d         *Dispatcher
	session   *domain.Session
	sessionMu sync.Mutex
	queues    map[domain.Channel]chan sendJob
	progress  chan<- ProgressEvent
	pending   sync.WaitGroup
	workerWG  sync.WaitGroup
	stop      chan struct{}
}

// Run streams recipients, rendering and sending each enabled channel's
// message(s) through its adapter, and returns the completed Session once
// every recipient has been read and every in-flight send (including
// queued retries) has settled.
//
// Canceling ctx stops the producer immediately and causes any in-flight
// or retry-scheduled send to abandon further attempts at its next
// cancellation check point; it does not interrupt a send already handed
// to an adapter.
func (d *Dispatcher) Run(ctx context.Context, recipients <-chan domain.Recipient, tmpl domain.Template, channels []domain.Channel, opts Options, progress chan<- ProgressEvent) *domain.Session {
	r := &run{
		d:        d,
		session:  &domain.Session{ID: uuid.NewString(), StartedAt: time.Now().UTC()},
		queues:   make(map[domain.Channel]chan sendJob, len(channels)),
		progress: progress,
		stop:     make(chan struct{}),
	}
	for _, ch := range channels {
		r.queues[ch] = make(chan sendJob, d.workers()*2)
	}

	for _, ch := range channels {
		for i := 0; i < d.workers(); i++ {
			r.workerWG.Add(1)
			go func(ch domain.Channel) {
				defer r.workerWG.Done()
				r.runWorker(ctx, ch)
			}(ch)
		}
	}

	r.produce(ctx, recipients, tmpl, channels, opts)

	// Every job the producer handed out, plus any retry still sleeping
	// off its backoff, increments pending before the queue send and
	// decrements it only once fully processed, so closing stop here is
	// safe: no goroutine will try to write to a queue afterward.
	go func() {
		r.pending.Wait()
		close(r.stop)
	}()
	r.workerWG.Wait()

	r.sessionMu.Lock()
	now := time.Now().UTC()
	r.session.CompletedAt = &now
	r.sessionMu.Unlock()

	return r.session
}

func (r *run) produce(ctx context.Context, recipients <-chan domain.Recipient, tmpl domain.Template, channels []domain.Channel, opts Options) {
	for {
		select {
		case <-ctx.Done():
			return
		case recipient, ok := <-recipients:
			if !ok {
				return
			}
			r.dispatchRecipient(ctx, recipient, tmpl, channels, opts)

			if opts.PerMessageDelay > 0 && !sleepCtx(ctx, opts.PerMessageDelay) {
				return
			}
		}
	}
}

func (r *run) dispatchRecipient(ctx context.Context, recipient domain.Recipient, tmpl domain.Template, channels []domain.Channel, opts Options) {
	byChannel := make(map[domain.Channel][]domain.RenderedMessage)

	for _, msg := range render.RenderForRecipient(tmpl, recipient, nil) {
		if msg.Channel == domain.ChannelWhatsAppAPI && opts.Split.Strategy != "" {
			continue // superseded below by the split sequence
		}
		byChannel[msg.Channel] = append(byChannel[msg.Channel], msg)
	}

	if tmpl.EnabledWhatsApp && recipient.HasWhatsAppChannel() && opts.Split.Strategy != "" {
		if seq, err := render.RenderWhatsAppSequence(tmpl, recipient, nil, opts.Split); err == nil {
			byChannel[domain.ChannelWhatsAppAPI] = seq
		}
	}

	// whatsapp_browser is driven by the same rendered body as
	// whatsapp_api; a caller enables exactly one of the two per run, so
	// route the rendered WhatsApp messages to whichever of the two
	// channels actually has a queue.
	if msgs, ok := byChannel[domain.ChannelWhatsAppAPI]; ok {
		if _, hasAPIQueue := r.queues[domain.ChannelWhatsAppAPI]; !hasAPIQueue {
			if _, hasBrowserQueue := r.queues[domain.ChannelWhatsAppBrowser]; hasBrowserQueue {
				byChannel[domain.ChannelWhatsAppBrowser] = msgs
				delete(byChannel, domain.ChannelWhatsAppAPI)
			}
		}
	}

	for _, ch := range channels {
		messages := byChannel[ch]
		if len(messages) == 0 {
			continue
		}

		r.sessionMu.Lock()
		r.session.Total++
		r.sessionMu.Unlock()

		r.pending.Add(1)
		job := sendJob{recipient: recipient, channel: ch, messages: messages}
		select {
		case r.queues[ch] <- job:
		case <-ctx.Done():
			r.pending.Done()
			return
		}
	}
}

func (r *run) runWorker(ctx context.Context, ch domain.Channel) {
	adapter := r.d.Adapters[ch]
	queue := r.queues[ch]
	for {
		select {
		case job := <-queue:
			for _, msg := range job.messages {
				r.sendOne(ctx, job.recipient, ch, msg, adapter)
				if msg.DelayAfter > 0 {
					sleepCtx(ctx, msg.DelayAfter)
				}
			}
			r.pending.Done()
		case <-r.stop:
			return
		}
	}
}

func (r *run) sendOne(ctx context.Context, recipient domain.Recipient, ch domain.Channel, msg domain.RenderedMessage, adapter channel.Adapter) {
	d := r.d
	kind := d.kindFor(ch)

	burstUsed := false
	for {
		if ctx.Err() != nil {
			return
		}
		decision := d.Quota.CanMakeRequest(kind, true)
		if decision.Admitted {
			burstUsed = decision.BurstInUse
			break
		}
		wait := time.Duration(decision.WaitSeconds * float64(time.Second))
		if wait > maxQuotaWaitPerPoll {
			wait = maxQuotaWaitPerPoll
		}
		if !sleepCtx(ctx, wait) {
			return
		}
	}

	recipientKey := recipient.Email
	if ch != domain.ChannelMail {
		recipientKey = recipient.Phone
	}

	record := &domain.DeliveryRecord{
		ID:         uuid.NewString(),
		SessionID:  r.session.ID,
		Recipient:  recipientKey,
		Channel:    ch,
		Status:     domain.StatusQueued,
		MaxRetries: d.maxRetries(),
		CreatedAt:  time.Now().UTC(),
	}
	if d.Store != nil {
		d.Store.Insert(ctx, record)
		d.Store.ApplyStatus(ctx, record.ID, domain.StatusSending, time.Now().UTC(), "", "")
	}

	var result channel.Result
	if adapter != nil {
		result = adapter.Send(ctx, msg, channel.SendOptions{})
	} else {
		result = channel.Result{Err: adaptererror.New(adaptererror.CodeUnknown, "no adapter configured for channel", nil)}
	}

	d.Quota.RecordRequest(kind, burstUsed)

	now := time.Now().UTC()
	if result.OK {
		if d.Store != nil {
			d.Store.ApplyStatus(ctx, record.ID, domain.StatusSent, now, result.MessageID, "")
		}
		r.sessionMu.Lock()
		r.session.Sent++
		r.sessionMu.Unlock()
	} else {
		errMsg := ""
		retriable := false
		if result.Err != nil {
			errMsg = result.Err.Error()
			retriable = result.Err.Retriable
		}
		failedRecord := record
		if d.Store != nil {
			if updated, err := d.Store.ApplyStatus(ctx, record.ID, domain.StatusFailed, now, "", errMsg); err == nil {
				failedRecord = updated
			}
		}
		r.sessionMu.Lock()
		r.session.Failed++
		r.sessionMu.Unlock()

		if retriable && failedRecord.RetryCount < d.maxRetries() {
			r.scheduleRetry(ctx, failedRecord, recipient, ch, msg)
		}
	}

	if r.progress != nil {
		select {
		case r.progress <- ProgressEvent{Recipient: recipient, Channel: ch, Record: record, Result: result}:
		case <-ctx.Done():
		}
	}
}

// scheduleRetry waits out record's backoff, then, if still live, requeues
// its message for another attempt. pending is held for the whole wait so
// Run never tears down the queues out from under a sleeping retry.
func (r *run) scheduleRetry(ctx context.Context, record *domain.DeliveryRecord, recipient domain.Recipient, ch domain.Channel, msg domain.RenderedMessage) {
	d := r.d
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()

		backoff := d.backoffBase() * time.Duration(1<<uint(record.RetryCount))
		if backoff > d.backoffCap() {
			backoff = d.backoffCap()
		}
		if !sleepCtx(ctx, backoff) {
			return
		}

		if d.Store != nil {
			if _, err := d.Store.ApplyStatus(ctx, record.ID, domain.StatusQueued, time.Now().UTC(), "", ""); err != nil {
				return
			}
		}

		queue, ok := r.queues[ch]
		if !ok {
			return
		}
		r.pending.Add(1)
		job := sendJob{recipient: recipient, channel: ch, messages: []domain.RenderedMessage{msg}}
		select {
		case queue <- job:
		case <-ctx.Done():
			r.pending.Done()
		}
	}()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

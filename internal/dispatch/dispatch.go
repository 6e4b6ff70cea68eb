// Package dispatch connects inbound events to the conversation engine:
// it serializes handling per sender, persists the resulting snapshot and
// executes the returned effects against the channel and side services.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/helpline1930/helpline/internal/conversation"
	"github.com/helpline1930/helpline/internal/flow"
	"github.com/helpline1930/helpline/internal/models"
)

// Gateway is the outbound message surface the dispatcher needs.
type Gateway interface {
	SendText(ctx context.Context, to, body string) error
	SendButtons(ctx context.Context, to, body string, options []flow.Option) error
	SendList(ctx context.Context, to, body, buttonLabel string, sections []conversation.ListSection) error
}

// Renderer produces the PDF artifact for a record.
type Renderer interface {
	Render(rec *models.Complaint) (string, error)
}

// Notifier announces submissions to the ops channel.
type Notifier interface {
	Submitted(rec *models.Complaint, reference, category string) error
}

// Dispatcher runs one event through the engine under a per-sender lock.
// Snapshot persistence is the serialization point: within a sender,
// events apply in arrival order and never interleave.
type Dispatcher struct {
	engine    *conversation.Engine
	snapshots conversation.SnapshotStore
	records   conversation.RecordStore
	gateway   Gateway
	renderer  Renderer
	notifier  Notifier

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Opts holds parameters for creating a Dispatcher. Renderer and Notifier
// are optional; their effects are skipped when absent.
type Opts struct {
	Engine    *conversation.Engine
	Snapshots conversation.SnapshotStore
	Records   conversation.RecordStore
	Gateway   Gateway
	Renderer  Renderer
	Notifier  Notifier
}

// New creates a Dispatcher.
func New(opts Opts) (*Dispatcher, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("dispatch: engine is required")
	}
	if opts.Snapshots == nil {
		return nil, fmt.Errorf("dispatch: snapshot store is required")
	}
	if opts.Records == nil {
		return nil, fmt.Errorf("dispatch: record store is required")
	}
	if opts.Gateway == nil {
		return nil, fmt.Errorf("dispatch: gateway is required")
	}
	return &Dispatcher{
		engine:    opts.Engine,
		snapshots: opts.Snapshots,
		records:   opts.Records,
		gateway:   opts.Gateway,
		renderer:  opts.Renderer,
		notifier:  opts.Notifier,
		locks:     map[string]*sync.Mutex{},
	}, nil
}

func (d *Dispatcher) lockFor(senderID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[senderID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[senderID] = l
	}
	return l
}

// Dispatch handles one inbound event end to end. The snapshot write is
// the only failure that aborts; effect execution is best effort, since a
// failed send must not lose the already-committed transition.
func (d *Dispatcher) Dispatch(ctx context.Context, ev conversation.Event) error {
	if ev.SenderID == "" {
		return fmt.Errorf("dispatch: sender id is required")
	}

	l := d.lockFor(ev.SenderID)
	l.Lock()
	defer l.Unlock()

	snap, err := d.snapshots.Get(ev.SenderID)
	if err != nil {
		return fmt.Errorf("dispatch: load snapshot: %w", err)
	}

	next, effects := d.engine.Handle(ctx, snap, ev)

	if err := d.snapshots.Put(next); err != nil {
		return fmt.Errorf("dispatch: save snapshot: %w", err)
	}

	for _, effect := range effects {
		d.execute(ctx, effect)
	}
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, effect conversation.Effect) {
	switch e := effect.(type) {
	case conversation.TextEffect:
		if err := d.gateway.SendText(ctx, e.To, e.Body); err != nil {
			log.Printf("dispatch: send text to %s: %v", e.To, err)
		}
	case conversation.ButtonsEffect:
		if err := d.gateway.SendButtons(ctx, e.To, e.Body, e.Options); err != nil {
			log.Printf("dispatch: send buttons to %s: %v", e.To, err)
			d.sendFallback(ctx, e.To, e.Body, e.Options)
		}
	case conversation.ListEffect:
		if err := d.gateway.SendList(ctx, e.To, e.Body, e.ButtonLabel, e.Sections); err != nil {
			log.Printf("dispatch: send list to %s: %v", e.To, err)
			var options []flow.Option
			for _, s := range e.Sections {
				options = append(options, s.Rows...)
			}
			d.sendFallback(ctx, e.To, e.Body, options)
		}
	case conversation.RenderReportEffect:
		d.renderReport(e.RecordID)
	case conversation.NotifyEffect:
		d.notifySubmitted(e)
	default:
		log.Printf("dispatch: unknown effect %T", effect)
	}
}

// sendFallback degrades an interactive message to numbered plain text,
// which the dual id/label matcher on the receiving side still accepts.
func (d *Dispatcher) sendFallback(ctx context.Context, to, body string, options []flow.Option) {
	text := body
	for _, o := range options {
		text += fmt.Sprintf("\n%s. %s", o.ID, o.Label)
	}
	if err := d.gateway.SendText(ctx, to, text); err != nil {
		log.Printf("dispatch: text fallback to %s: %v", to, err)
	}
}

func (d *Dispatcher) renderReport(recordID uint) {
	if d.renderer == nil {
		return
	}
	rec, err := d.records.Get(recordID)
	if err != nil {
		log.Printf("dispatch: render report %d: %v", recordID, err)
		return
	}
	if _, err := d.renderer.Render(rec); err != nil {
		log.Printf("dispatch: render report %d: %v", recordID, err)
	}
}

func (d *Dispatcher) notifySubmitted(e conversation.NotifyEffect) {
	if d.notifier == nil {
		return
	}
	rec, err := d.records.Get(e.RecordID)
	if err != nil {
		log.Printf("dispatch: notify %s: %v", e.Reference, err)
		return
	}
	if err := d.notifier.Submitted(rec, e.Reference, e.Category); err != nil {
		log.Printf("dispatch: notify %s: %v", e.Reference, err)
	}
}

// Package worker implements the generic job loop of spec §4.4 — dequeue,
// validate, build pipeline, execute, ack/nack — and the seven concrete
// workers of §4.3/§4.9 that specialize it per queue. It is the component
// the rest of engine/* feeds: action.Factory supplies the steps,
// pipeline.Build sequences them, errhandler.Resolve classifies failures,
// tracker.Tracker and status.Broadcaster are the cross-worker
// synchronization points.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/recipeforge/ingest-pipeline/engine/action"
	"github.com/recipeforge/ingest-pipeline/engine/errhandler"
	"github.com/recipeforge/ingest-pipeline/engine/job"
	"github.com/recipeforge/ingest-pipeline/engine/pipeline"
	"github.com/recipeforge/ingest-pipeline/engine/queue"
	"github.com/recipeforge/ingest-pipeline/engine/status"
)

// BaseWorker runs one queue's job loop: validate the envelope, build its
// pipeline, execute each action in strict sequence, and decide ack vs.
// nack for the queue layer. It carries no per-job state of its own — the
// only cross-job state lives in the Tracker and Broadcaster singletons
// shared via action.Deps.
type BaseWorker struct {
	Queue    job.Name
	Factory  *action.Factory
	Deps     action.Deps
	Retry    errhandler.RetryPolicy
	now      func() time.Time
	preCheck func(ctx context.Context, envelope job.Envelope) bool

	// OnHandled, when set, is called once per HandleJob invocation that
	// actually runs the pipeline (preCheck skips do not count) with an
	// outcome label: "success", "schema_invalid", "pipeline_fatal",
	// "action_fatal", "retry_exhausted", or "interrupted". cmd/worker uses this to drive
	// the recipe_jobs_processed_total metric without engine/worker
	// importing pkg/metrics directly.
	OnHandled func(queue job.Name, outcome string)
}

// New builds a BaseWorker for queue name. preCheck, when non-nil, runs
// before the pipeline is built; returning false makes HandleJob a
// no-op ack, the mechanism CATEGORIZATION uses to wait on the note's
// completion tracker (spec §4.9).
func New(name job.Name, factory *action.Factory, deps action.Deps, preCheck func(ctx context.Context, envelope job.Envelope) bool) *BaseWorker {
	return &BaseWorker{
		Queue:    name,
		Factory:  factory,
		Deps:     deps,
		Retry:    errhandler.DefaultRetryPolicy,
		now:      time.Now,
		preCheck: preCheck,
	}
}

// HandleJob is the queue.Handler BaseWorker registers with Consume. A nil
// return acks the job (pipeline success, fatal failure, or a BusinessRule
// outcome); a non-nil return lets the queue layer redeliver it at once
// (backoff applies only to runAction's in-process retries), the fallback path for when this process exits mid-retry. Because every
// action is idempotent per (noteId, action.name, step-identifier) (spec
// §4.1), a full-pipeline redelivery is safe even though it reruns steps
// this invocation's own in-process retry loop (runAction) would not.
func (w *BaseWorker) HandleJob(ctx context.Context, envelope job.Envelope) error {
	log := w.logger()

	if err := job.Validate(envelope); err != nil {
		log.Warn("worker: schema validation failed", "queue", w.Queue, "job_id", envelope.JobID, "error", err)
		w.emitFailed(envelope, err, errhandler.SchemaValidation)
		w.report("schema_invalid")
		return nil
	}

	if w.preCheck != nil && !w.preCheck(ctx, envelope) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, envelope.Timeout())
	defer cancel()

	data := action.Data{Job: envelope, Metadata: cloneMetadata(envelope.Metadata)}

	actions, err := pipeline.Build(w.Factory, w.Deps, w.Queue, data)
	if err != nil {
		log.Error("worker: pipeline build failed", "queue", w.Queue, "job_id", envelope.JobID, "error", err)
		w.emitFailed(envelope, err, errhandler.ExternalFatal)
		w.report("pipeline_fatal")
		return nil
	}

	for _, act := range actions {
		var actErr error
		var terminal bool
		data, actErr, terminal = w.runAction(ctx, act, data, envelope)
		if actErr != nil {
			if !terminal {
				// The action's retry loop never reached a verdict — ctx was
				// canceled (job timeout or process shutdown) mid-backoff, so
				// no FAILED event was emitted and nothing was decided fatal.
				// Hand back to the queue layer for a fresh delivery.
				w.report("interrupted")
				return actErr
			}
			// runAction already ran this action to a terminal verdict
			// (Resolve returned OutcomeFatal, possibly after exhausting
			// every in-process retry) and emitted the FAILED event itself.
			// That verdict is final regardless of the error's own Kind —
			// re-deriving Classify(actErr) here and redelivering on
			// ExternalTransient would re-run every earlier action in the
			// pipeline, which spec §8's "no other action was re-executed"
			// property forbids. Ack.
			if errhandler.Classify(actErr) == errhandler.ExternalTransient {
				w.report("retry_exhausted")
			} else {
				w.report("action_fatal")
			}
			return nil
		}
	}
	w.report("success")
	return nil
}

func (w *BaseWorker) report(outcome string) {
	if w.OnHandled != nil {
		w.OnHandled(w.Queue, outcome)
	}
}

// runAction retries act in-process, same action only, backing off between
// attempts, until it succeeds, exhausts envelope.MaxRetries, or is
// classified fatal/business (spec §4.4 step 4d, §4.8).
//
// The returned bool is terminal: true means the error (if any) reflects a
// final verdict this call already reached and, for a fatal verdict,
// already reported via emitFailed — the caller must ack, never redeliver
// the whole pipeline for it. false means runAction was interrupted before
// reaching a verdict (ctx canceled mid-backoff) and the caller may treat
// the job as still outstanding.
func (w *BaseWorker) runAction(ctx context.Context, act action.Action, data action.Data, envelope job.Envelope) (action.Data, error, bool) {
	maxRetries := envelope.MaxRetries
	if maxRetries < job.MinMaxRetries {
		maxRetries = job.DefaultMaxRetries
	}
	log := w.logger()

	attempt := 0
	for {
		attempt++
		result := act.ExecuteWithTiming(ctx, data)
		if result.Success {
			return result.Data, nil, true
		}

		outcome, kind := errhandler.Resolve(result.Err, attempt, maxRetries)
		switch outcome {
		case errhandler.OutcomeContinue:
			// BusinessRule: the action already annotated data.Metadata
			// and returned a nil-equivalent outcome; proceed without
			// treating this as a failure or emitting FAILED.
			return result.Data, nil, true
		case errhandler.OutcomeRetry:
			backoff := w.Retry.Backoff(attempt)
			log.Warn("worker: action failed, retrying", "queue", w.Queue, "action", act.Name(),
				"job_id", envelope.JobID, "attempt", attempt, "backoff", backoff, "error", result.Err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return data, errhandler.Transient(ctx.Err()), false
			}
			continue
		default:
			log.Error("worker: action failed fatally", "queue", w.Queue, "action", act.Name(),
				"job_id", envelope.JobID, "error", result.Err)
			w.emitFailed(envelope, result.Err, kind)
			return result.Data, result.Err, true
		}
	}
}

func (w *BaseWorker) emitFailed(envelope job.Envelope, err error, kind errhandler.Kind) {
	if w.Deps.Broadcast == nil {
		return
	}
	w.Deps.Broadcast.AddStatusEventAndBroadcast(status.NewError(
		envelope.ImportID, envelope.NoteID, err.Error(),
		status.WithMetadata(map[string]any{
			"errorType": kind.String(),
			"queue":     string(w.Queue),
		}),
		status.WithIndent(2),
	))
}

func (w *BaseWorker) logger() *slog.Logger {
	if w.Deps.Log != nil {
		return w.Deps.Log
	}
	return slog.Default()
}

func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Workers bundles the seven concrete workers, one per named queue.
type Workers struct {
	byName map[job.Name]*BaseWorker
}

// BuildAll constructs the seven concrete workers of spec §4.3/§4.9, wiring
// CATEGORIZATION's tracker-completion preCheck. factory must already have
// every action.Name registered (action.RegisterAll).
func BuildAll(factory *action.Factory, deps action.Deps) *Workers {
	byName := make(map[job.Name]*BaseWorker, len(job.AllQueues))
	for _, name := range job.AllQueues {
		byName[name] = New(name, factory, deps, nil)
	}

	// CATEGORIZATION must observe the note's tracker as complete before
	// running; otherwise it exits early, deferring to whichever fan-out
	// child's SCHEDULE_CATEGORIZATION_AFTER_COMPLETION fires last
	// (spec §4.6/§4.9).
	byName[job.Categorization] = New(job.Categorization, factory, deps, func(ctx context.Context, envelope job.Envelope) bool {
		if envelope.NoteID == "" {
			return false
		}
		return deps.Tracker.Check(envelope.NoteID).IsComplete
	})

	return &Workers{byName: byName}
}

// Get returns the BaseWorker for a named queue.
func (w *Workers) Get(name job.Name) (*BaseWorker, bool) {
	bw, ok := w.byName[name]
	return bw, ok
}

// StartAll subscribes every worker to its queue via q.Consume, returning
// the resulting subscriptions for shutdown. Consume runs each worker's
// HandleJob as the queue.Handler.
func (w *Workers) StartAll(q queue.Queue) ([]queue.Subscription, error) {
	subs := make([]queue.Subscription, 0, len(w.byName))
	for _, name := range job.AllQueues {
		bw := w.byName[name]
		sub, err := q.Consume(name, bw.HandleJob)
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil, fmt.Errorf("worker: subscribe %s: %w", name, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

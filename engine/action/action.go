package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/recipeforge/ingest-pipeline/engine/category"
	"github.com/recipeforge/ingest-pipeline/engine/job"
	"github.com/recipeforge/ingest-pipeline/engine/parsedfile"
	"github.com/recipeforge/ingest-pipeline/engine/persist"
	"github.com/recipeforge/ingest-pipeline/engine/queue"
	"github.com/recipeforge/ingest-pipeline/engine/status"
	"github.com/recipeforge/ingest-pipeline/engine/tracker"
	"github.com/recipeforge/ingest-pipeline/pkg/fn"
)

// Data is the polymorphic payload actions read from and write back to, the
// way the teacher's Stage[In, Out] chain passes a value forward. Every
// action reads only the fields it needs and sets only the fields its name
// documents producing.
type Data struct {
	Job job.Envelope

	ParsedFile   *parsedfile.File
	Ingredients  []parsedfile.ParsedIngredientLine
	Instructions []parsedfile.ParsedInstructionLine

	Ingredient  *parsedfile.ParsedIngredientLine
	Instruction *parsedfile.ParsedInstructionLine
	LineIndex   int

	ImageRef  string
	SourceURL string
	Category  *string
	Tags      []string
	Pattern   string

	Metadata map[string]any
}

// Deps bundles the collaborators every concrete action is built from:
// persistence, the completion tracker, the status broadcaster, the
// category table, and structured logging. It is the common denominator
// every ActionFactory constructor closes over.
type Deps struct {
	Store      persist.Store
	Tracker    *tracker.Tracker
	Broadcast  *status.Broadcaster
	Categories category.Table
	Log        *slog.Logger

	// Queues holds one enqueue target per named queue, used by the
	// SCHEDULE_* actions to fan out child jobs.
	Queues map[job.Name]queue.Queue

	// ParseHTML is the out-of-scope HTML parser, a pure function from
	// raw export content to structured recipe data (spec §1).
	ParseHTML func(content string) (*parsedfile.File, error)

	// ProcessImageRef and ProcessSourceURL are optional external hooks
	// for PROCESS_IMAGE/PROCESS_SOURCE; identity passthrough when nil.
	ProcessImageRef  func(ctx context.Context, ref string) (string, error)
	ProcessSourceURL func(ctx context.Context, url string) (string, error)
}

func (d Deps) queueFor(name job.Name) (queue.Queue, bool) {
	q, ok := d.Queues[name]
	return q, ok
}

func (d Deps) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// ExecResult is the outcome of running an action through Time: the
// resulting Data on success, the error on failure, and how long it took.
type ExecResult struct {
	Success  bool
	Data     Data
	Err      error
	Duration time.Duration
}

// Action is a single named, retryable, timed unit of work.
type Action interface {
	Name() Name
	Retryable() bool
	Priority() int
	ValidateInput(Data) error
	Execute(ctx context.Context, data Data) (Data, error)
	ExecuteWithTiming(ctx context.Context, data Data) ExecResult
}

// Base carries the declarative bits of an action (name, retry policy,
// priority) so concrete actions only need to implement ValidateInput and
// Execute.
type Base struct {
	name      Name
	retryable bool
	priority  int
}

// NewBase builds a Base. priority follows the job.MinPriority..MaxPriority
// scale; most actions run at job.DefaultPriority unless documented
// otherwise.
func NewBase(name Name, retryable bool, priority int) Base {
	return Base{name: name, retryable: retryable, priority: priority}
}

func (b Base) Name() Name      { return b.name }
func (b Base) Retryable() bool { return b.retryable }
func (b Base) Priority() int   { return b.priority }

// ExecuteWithTiming runs execute as a pkg/fn.TracedStage — the same OTel
// span helper engine/pipeline's Stage chain would use — and recovers any
// panic into an error result, so a single action can never take a worker
// down (spec §4.1: actions never throw past the pipeline boundary).
func ExecuteWithTiming(ctx context.Context, name Name, data Data, execute func(context.Context, Data) (Data, error)) ExecResult {
	start := time.Now()

	stage := fn.TracedStage(string(name), func(ctx context.Context, d Data) fn.Result[Data] {
		out := runRecovered(ctx, d, execute)
		return fn.FromPair(out.data, out.err)
	})
	result := stage(ctx, data)
	d, err := result.Unwrap()

	return ExecResult{
		Success:  err == nil,
		Data:     d,
		Err:      err,
		Duration: time.Since(start),
	}
}

// Run is the boilerplate every concrete action's ExecuteWithTiming
// delegates to: validate, then time+trace+recover the execute call.
func Run(ctx context.Context, name Name, data Data, validate func(Data) error, execute func(context.Context, Data) (Data, error)) ExecResult {
	start := time.Now()
	if err := validate(data); err != nil {
		return ExecResult{Success: false, Data: data, Err: err, Duration: time.Since(start)}
	}
	return ExecuteWithTiming(ctx, name, data, execute)
}

type runOutcome struct {
	data Data
	err  error
}

// withMetadata returns a copy of data with key set in its Metadata map,
// allocating the map if needed. Actions must not mutate a caller's map in
// place since Data is passed by value through the pipeline.
func withMetadata(data Data, key string, value any) Data {
	meta := make(map[string]any, len(data.Metadata)+1)
	for k, v := range data.Metadata {
		meta[k] = v
	}
	meta[key] = value
	data.Metadata = meta
	return data
}

// asInt reads a metadata value as an int. Job envelopes round-trip through
// JSON on a real broker, which turns every number into float64, so a plain
// v.(int) assertion that works against an in-process queue fails against a
// NATS one; this normalizes both shapes.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// annotateBusinessError records a BusinessRule outcome on data per §7
// point 4: the action returns data with the annotation and a nil error,
// so the pipeline continues instead of failing the job.
func annotateBusinessError(data Data, message string) Data {
	data = withMetadata(data, "error", message)
	data = withMetadata(data, "errorTimestamp", time.Now())
	return data
}

func runRecovered(ctx context.Context, data Data, execute func(context.Context, Data) (Data, error)) (out runOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = runOutcome{data: data, err: fmt.Errorf("action: panic: %v", r)}
		}
	}()
	d, err := execute(ctx, data)
	return runOutcome{data: d, err: err}
}

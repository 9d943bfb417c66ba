// Command intake implements the thin HTTP surface of spec §6: accept a
// note export, enqueue it onto the NOTE queue, and let the cmd/worker
// process answer the rest of the pipeline asynchronously. It replaces the
// teacher's cmd/api server, keeping the same mid.Chain/http.ServeMux
// shape but without any of the RAG/graph/vector-store wiring that server
// did — this process only ever touches the queue, the store, and the
// status broadcaster.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/recipeforge/ingest-pipeline/engine/job"
	"github.com/recipeforge/ingest-pipeline/engine/parsedfile"
	"github.com/recipeforge/ingest-pipeline/engine/persist"
	"github.com/recipeforge/ingest-pipeline/engine/queue"
	"github.com/recipeforge/ingest-pipeline/engine/status"
	"github.com/recipeforge/ingest-pipeline/pkg/config"
	"github.com/recipeforge/ingest-pipeline/pkg/mid"
	"github.com/recipeforge/ingest-pipeline/pkg/natsutil"
	"github.com/recipeforge/ingest-pipeline/pkg/resilience"

	"database/sql"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
)

// heartbeatSubject mirrors cmd/worker's publish subject; kept as a literal
// rather than a shared package constant since it's the only coupling
// between the two processes besides the job queues themselves.
const heartbeatSubject = "worker.heartbeat"

// workerHeartbeat is natsutil.Subscribe's payload type for heartbeatSubject.
type workerHeartbeat struct {
	SentAt time.Time `json:"sent_at"`
}

// workerLiveness tracks the most recent heartbeat for GET /health.
type workerLiveness struct {
	mu       sync.Mutex
	lastSeen time.Time
}

func (wl *workerLiveness) record(h workerHeartbeat) {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	wl.lastSeen = h.SentAt
}

func (wl *workerLiveness) status() string {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	if wl.lastSeen.IsZero() || time.Since(wl.lastSeen) > 15*time.Second {
		return "unknown"
	}
	return "healthy"
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("intake: invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("intake: exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://" + cfg.RedisHost + ":" + cfg.RedisPort
	}
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return err
	}
	defer nc.Close()
	q := queue.NewNATSQueue(nc, logger)

	liveness := &workerLiveness{}
	if _, err := natsutil.Subscribe(nc, heartbeatSubject, func(_ context.Context, h workerHeartbeat) {
		liveness.record(h)
	}); err != nil {
		return err
	}

	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	store := persist.NewPostgresStore(sqlDB)

	broadcast := status.New(logger)
	ws := status.NewWSSubscriber()
	broadcast.Subscribe("ws", ws)

	srv := newServer(cfg, q, store, broadcast, ws, liveness, logger)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("intake: listening", "port", cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("intake: shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

func newServer(cfg config.Config, q queue.Queue, store persist.Store, broadcast *status.Broadcaster, ws *status.WSSubscriber, liveness *workerLiveness, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth(liveness))
	mux.HandleFunc("POST /import", handleImport(q, logger))
	mux.HandleFunc("GET /notes/{id}", handleGetNote(store, logger))
	mux.HandleFunc("GET /notes/{id}/events", handleNoteEvents(broadcast, logger))
	mux.HandleFunc("GET /ws", ws.ServeHTTP)

	return mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS("*"),
		mid.OTel("intake"),
		rateLimit(cfg),
	)
}

// rateLimit enforces cfg's RATE_LIMIT_WINDOW_MS/RATE_LIMIT_MAX_REQUESTS pair
// (spec §6) as a token bucket: RateLimitMaxRequests tokens refilled evenly
// over RateLimitWindow, burst capped at the same count.
func rateLimit(cfg config.Config) mid.Middleware {
	window := cfg.RateLimitWindow()
	ratePerSec := float64(cfg.RateLimitMaxRequests) / window.Seconds()
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: ratePerSec, Burst: cfg.RateLimitMaxRequests})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleHealth(liveness *workerLiveness) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "worker": liveness.status()})
	}
}

// ImportRequest is the JSON body for POST /import: raw export content plus
// an optional caller-supplied import ID to correlate with status events.
type ImportRequest struct {
	Content  string `json:"content"`
	ImportID string `json:"import_id,omitempty"`
}

// ImportResponse acknowledges the enqueue; the NOTE worker fills in the
// actual noteId asynchronously via status events, not this response.
type ImportResponse struct {
	JobID    string `json:"job_id"`
	ImportID string `json:"import_id"`
}

func handleImport(q queue.Queue, logger *slog.Logger) http.HandlerFunc {
	breaker := resilience.NewBreaker(resilience.DefaultBreakerOpts)

	return func(w http.ResponseWriter, r *http.Request) {
		var req ImportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := parsedfile.ValidateIntakeContent(req.Content); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		importID := req.ImportID
		if importID == "" {
			importID = uuid.New().String()
		} else if err := job.ValidateImportIDParam(importID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		jobID := uuid.New().String()
		env := job.New(jobID, "", importID)
		env.Metadata["content"] = req.Content

		// A circuit breaker around the broker call keeps a flapping NATS
		// connection from queuing up a pile of slow timeouts behind it;
		// once tripped, intake fails fast until the broker has had time
		// to recover (spec §5's backpressure concern, applied at the
		// intake boundary rather than inside the workers).
		err := breaker.Call(r.Context(), func(ctx context.Context) error {
			return q.Enqueue(ctx, job.Note, env)
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			writeError(w, http.StatusServiceUnavailable, "import queue temporarily unavailable")
			return
		}
		if err != nil {
			logger.Error("intake: enqueue NOTE job failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to enqueue import")
			return
		}

		writeJSON(w, http.StatusAccepted, ImportResponse{JobID: jobID, ImportID: importID})
	}
}

func handleGetNote(store persist.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := job.ValidateNoteIDParam(id); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		note, err := store.GetNoteWithEvernoteMetadata(r.Context(), id)
		if err != nil {
			logger.Error("intake: get note failed", "error", err, "note_id", id)
			writeError(w, http.StatusInternalServerError, "failed to load note")
			return
		}
		if note == nil {
			writeError(w, http.StatusNotFound, "note not found")
			return
		}

		writeJSON(w, http.StatusOK, note)
	}
}

// handleNoteEvents returns the ordered status-event history for a note
// (spec §4.7's progress narrative). The broadcaster's history is keyed by
// noteId, which SAVE_NOTE only assigns once the NOTE queue has run one
// step past enqueue — a caller without a noteId yet should watch /ws
// instead.
func handleNoteEvents(broadcast *status.Broadcaster, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := job.ValidateNoteIDParam(id); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, broadcast.History(id))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

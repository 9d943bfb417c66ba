package action

import (
	"context"
	"testing"
	"time"

	"github.com/recipeforge/ingest-pipeline/engine/job"
	"github.com/recipeforge/ingest-pipeline/engine/parsedfile"
	"github.com/recipeforge/ingest-pipeline/engine/persist"
)

func parsedIngredientFixture() parsedfile.ParsedIngredientLine {
	return parsedfile.ParsedIngredientLine{
		ID:          "job-1",
		Reference:   "2 cups flour",
		ParseStatus: parsedfile.CompletedSuccessfully,
	}
}

func TestFormatInstructionLineAction_NormalizesWhitespace(t *testing.T) {
	deps, _ := testDeps(t)
	act := newFormatInstructionLine(deps)

	env := job.New("job-1", "note-1", "import-1")
	env.Metadata["originalText"] = "Preheat  the\noven   to 350F."
	env.Metadata["lineIndex"] = 0

	res := act.ExecuteWithTiming(context.Background(), Data{Job: env})
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if res.Data.Instruction.NormalizedText != "Preheat the oven to 350F." {
		t.Fatalf("unexpected normalized text: %q", res.Data.Instruction.NormalizedText)
	}
}

func TestSaveInstructionLineAction_Persists(t *testing.T) {
	deps, store := testDeps(t)
	format := newFormatInstructionLine(deps)
	save := newSaveInstructionLine(deps)

	env := job.New("job-1", "note-1", "import-1")
	env.Metadata["originalText"] = "Mix well"
	env.Metadata["lineIndex"] = 1

	res := format.ExecuteWithTiming(context.Background(), Data{Job: env})
	if !res.Success {
		t.Fatalf("format step failed: %v", res.Err)
	}
	res = save.ExecuteWithTiming(context.Background(), res.Data)
	if !res.Success {
		t.Fatalf("save step failed: %v", res.Err)
	}
	if _, ok := store.instructions["job-1"]; !ok {
		t.Fatal("expected instruction line to be persisted")
	}
}

func TestProcessImageAction_IdentityPassthroughWithoutHook(t *testing.T) {
	deps, _ := testDeps(t)
	act := newProcessImage(deps)

	env := job.New("job-1", "note-1", "import-1")
	env.Metadata["image"] = "https://example.com/photo.jpg"

	res := act.ExecuteWithTiming(context.Background(), Data{Job: env})
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if res.Data.ImageRef != "https://example.com/photo.jpg" {
		t.Fatalf("unexpected image ref: %q", res.Data.ImageRef)
	}
}

func TestSaveImageAction_Persists(t *testing.T) {
	deps, store := testDeps(t)
	act := newSaveImage(deps)

	res := act.ExecuteWithTiming(context.Background(), Data{
		Job:      job.New("job-1", "note-1", "import-1"),
		ImageRef: "https://example.com/photo.jpg",
	})
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if store.images["note-1"] != "https://example.com/photo.jpg" {
		t.Fatalf("unexpected stored image: %q", store.images["note-1"])
	}
}

func TestProcessSourceAction_SavesWithoutHook(t *testing.T) {
	deps, store := testDeps(t)
	act := newProcessSource(deps)

	env := job.New("job-1", "note-1", "import-1")
	env.Metadata["sourceUrl"] = "https://example.com/recipe"

	res := act.ExecuteWithTiming(context.Background(), Data{Job: env})
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if store.sources["note-1"] != "https://example.com/recipe" {
		t.Fatalf("unexpected stored source: %q", store.sources["note-1"])
	}
}

func TestTrackPatternAction_EnqueuesSideChannelJob(t *testing.T) {
	deps, _ := testDeps(t)
	act := newTrackPattern(deps)

	received := make(chan job.Envelope, 1)
	sub, err := deps.Queues[job.PatternTracking].Consume(job.PatternTracking, func(ctx context.Context, e job.Envelope) error {
		received <- e
		return nil
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	defer sub.Unsubscribe()

	line := parsedIngredientFixture()
	res := act.ExecuteWithTiming(context.Background(), Data{
		Job:        job.New("job-1", "note-1", "import-1"),
		Ingredient: &line,
		Metadata: map[string]any{
			"segments": []persist.Segment{{Index: 0, Quantity: "2", Unit: "cup", Name: "flour"}},
		},
	})
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Err)
	}

	select {
	case env := <-received:
		if env.NoteID != "note-1" {
			t.Fatalf("unexpected envelope: %+v", env)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pattern-tracking job")
	}
}

func TestRecordPatternAction_Persists(t *testing.T) {
	deps, store := testDeps(t)
	act := newRecordPattern(deps)

	env := job.New("job-1", "note-1", "import-1")
	env.Metadata["pattern"] = "QUANTITY UNIT NAME"

	res := act.ExecuteWithTiming(context.Background(), Data{Job: env})
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if len(store.patterns["note-1"]) != 1 || store.patterns["note-1"][0] != "QUANTITY UNIT NAME" {
		t.Fatalf("unexpected recorded patterns: %+v", store.patterns["note-1"])
	}
}

package action

import (
	"testing"

	"github.com/recipeforge/ingest-pipeline/engine/job"
	"github.com/recipeforge/ingest-pipeline/engine/queue"
	"github.com/recipeforge/ingest-pipeline/engine/tracker"
)

func TestRegisterAll_EveryNameResolves(t *testing.T) {
	deps := Deps{
		Store:   newFakeStore(),
		Tracker: tracker.New(),
		Queues: map[job.Name]queue.Queue{
			job.Categorization:  queue.NewMemoryQueue(),
			job.PatternTracking: queue.NewMemoryQueue(),
			job.Ingredient:      queue.NewMemoryQueue(),
			job.Instruction:     queue.NewMemoryQueue(),
			job.Image:           queue.NewMemoryQueue(),
			job.Source:          queue.NewMemoryQueue(),
		},
	}
	f := NewFactory()
	if err := RegisterAll(f); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}

	for _, name := range AllNames {
		act, err := f.Create(name, deps)
		if err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
		if act.Name() != name {
			t.Fatalf("constructed action reports name %s, want %s", act.Name(), name)
		}
	}
}

func TestRegisterAll_DuplicateCallFails(t *testing.T) {
	f := NewFactory()
	if err := RegisterAll(f); err != nil {
		t.Fatalf("first RegisterAll: %v", err)
	}
	if err := RegisterAll(f); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

package tracker

import "testing"

func TestCreateZeroJobsCompletesImmediately(t *testing.T) {
	tr := New()
	tr.Create("n1", 0)
	st := tr.Check("n1")
	if !st.IsComplete {
		t.Fatal("expected zero-job tracker to be immediately complete")
	}
}

func TestIncrementToCompletion(t *testing.T) {
	tr := New()
	tr.Create("n1", 3)
	tr.Increment("n1")
	tr.Increment("n1")
	st := tr.Increment("n1")
	if !st.IsComplete || st.CompletedJobs != 3 {
		t.Fatalf("expected complete at 3/3, got %+v", st)
	}
}

func TestIncrementAfterCompleteIsNoOp(t *testing.T) {
	tr := New()
	tr.Create("n1", 1)
	tr.Increment("n1")
	st := tr.Increment("n1") // duplicate delivery
	if st.CompletedJobs != 1 {
		t.Fatalf("expected duplicate increment to be silent, got %+v", st)
	}
}

func TestJustCompletedFiresOnceAcrossDuplicateDelivery(t *testing.T) {
	tr := New()
	tr.Create("n1", 2)
	if st := tr.Increment("n1"); st.JustCompleted {
		t.Fatalf("expected first increment not to complete, got %+v", st)
	}
	if st := tr.Increment("n1"); !st.JustCompleted {
		t.Fatalf("expected second increment to complete, got %+v", st)
	}
	if st := tr.Increment("n1"); st.JustCompleted {
		t.Fatalf("expected duplicate delivery of the last increment not to re-fire, got %+v", st)
	}
}

func TestCheckAbsentIsComplete(t *testing.T) {
	tr := New()
	st := tr.Check("never-created")
	if !st.IsComplete || st.TotalJobs != 0 || st.CompletedJobs != 0 {
		t.Fatalf("expected {true,0,0}, got %+v", st)
	}
}

func TestIncrementAbsentSynthesizes(t *testing.T) {
	tr := New()
	st := tr.Increment("never-created")
	if !st.IsComplete || st.TotalJobs != 1 || st.CompletedJobs != 1 {
		t.Fatalf("expected synthesized {1,1,true}, got %+v", st)
	}
}

func TestUpdateAbsentSynthesizes(t *testing.T) {
	tr := New()
	tr.Update("n2", 5)
	st := tr.Check("n2")
	if !st.IsComplete || st.TotalJobs != 5 || st.CompletedJobs != 5 {
		t.Fatalf("expected synthesized {5,5,true}, got %+v", st)
	}
}

func TestUpdateNegativeNotClamped(t *testing.T) {
	tr := New()
	tr.Create("n3", 2)
	tr.Update("n3", -1)
	st := tr.Check("n3")
	if st.CompletedJobs != -1 {
		t.Fatalf("expected negative completedJobs preserved, got %d", st.CompletedJobs)
	}
	if st.IsComplete {
		t.Fatal("expected -1 < 2 to be incomplete")
	}
}

func TestCreateOverwritesPriorTracker(t *testing.T) {
	tr := New()
	tr.Create("n4", 2)
	tr.Increment("n4")
	tr.Create("n4", 5) // overwrite mid-flight
	st := tr.Check("n4")
	if st.TotalJobs != 5 || st.CompletedJobs != 0 || st.IsComplete {
		t.Fatalf("expected reset tracker, got %+v", st)
	}
}

func TestConcurrentIncrement(t *testing.T) {
	tr := New()
	const n = 200
	tr.Create("n5", n)
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			tr.Increment("n5")
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	st := tr.Check("n5")
	if !st.IsComplete || st.CompletedJobs != n {
		t.Fatalf("expected %d/%d complete, got %+v", n, n, st)
	}
}

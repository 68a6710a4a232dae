package resolve

import (
	"testing"

	"chart-recorder/internal/platform"
)

func TestResolve_ByNameCaseInsensitive(t *testing.T) {
	snap := platform.NewSnapshot()
	snap.SetStudy(1, platform.StudyRef{ID: 7, Name: "Volume Weighted Average Price"}, 0, nil)

	r := New(snap, nil)
	b, ok := r.Resolve(1, "vwap", Spec{Names: []string{"volume weighted average price"}})
	if !ok {
		t.Fatal("Expected resolution by case-insensitive name")
	}
	if b.StudyID != 7 {
		t.Errorf("Expected study 7, got %d", b.StudyID)
	}
}

func TestResolve_NameOrderWins(t *testing.T) {
	snap := platform.NewSnapshot()
	snap.SetStudy(1, platform.StudyRef{ID: 3, Name: "VWAP (Volume Weighted Average Price)"}, 0, nil)
	snap.SetStudy(1, platform.StudyRef{ID: 9, Name: "Volume Weighted Average Price"}, 0, nil)

	r := New(snap, nil)
	b, ok := r.Resolve(1, "vwap", Spec{Names: []string{
		"Volume Weighted Average Price",
		"VWAP (Volume Weighted Average Price)",
	}})
	if !ok || b.StudyID != 9 {
		t.Errorf("Expected first candidate name to win (study 9), got %+v ok=%v", b, ok)
	}
}

func TestResolve_ExplicitIDValidated(t *testing.T) {
	snap := platform.NewSnapshot()
	snap.SetStudy(1, platform.StudyRef{ID: 12, Name: "Numbers Bars Calculated Values"}, 0, nil)

	r := New(snap, nil)
	if _, ok := r.Resolve(1, "orderflow", Spec{ExplicitID: 99}); ok {
		t.Error("Explicit ID absent from the catalog must not resolve")
	}
	b, ok := r.Resolve(1, "orderflow", Spec{ExplicitID: 12})
	if !ok || b.StudyID != 12 {
		t.Errorf("Expected explicit binding to study 12, got %+v ok=%v", b, ok)
	}
}

func TestResolve_RetriesUntilStudyAppears(t *testing.T) {
	snap := platform.NewSnapshot()
	r := New(snap, nil)

	spec := Spec{Names: []string{"Volume Weighted Average Price"}}
	for i := 0; i < 3; i++ {
		if _, ok := r.Resolve(1, "vwap", spec); ok {
			t.Fatal("Nothing to resolve yet")
		}
	}
	if r.Resolved(1, "vwap") {
		t.Fatal("Must not be marked resolved")
	}

	// The study attaches mid-session; the next update resolves it.
	snap.SetStudy(1, platform.StudyRef{ID: 5, Name: "Volume Weighted Average Price"}, 0, nil)
	b, ok := r.Resolve(1, "vwap", spec)
	if !ok || b.StudyID != 5 {
		t.Fatalf("Expected late resolution to study 5, got %+v ok=%v", b, ok)
	}
}

func TestResolve_BindingIsSticky(t *testing.T) {
	snap := platform.NewSnapshot()
	snap.SetStudy(1, platform.StudyRef{ID: 5, Name: "Volume Weighted Average Price"}, 0, nil)

	r := New(snap, nil)
	spec := Spec{Names: []string{"Volume Weighted Average Price"}}
	if _, ok := r.Resolve(1, "vwap", spec); !ok {
		t.Fatal("Expected resolution")
	}

	// A same-named study attaching later must not steal the stream.
	snap.SetStudy(1, platform.StudyRef{ID: 2, Name: "Volume Weighted Average Price"}, 0, nil)
	b, ok := r.Resolve(1, "vwap", spec)
	if !ok || b.StudyID != 5 {
		t.Errorf("Binding must stay on study 5, got %+v ok=%v", b, ok)
	}
}

func TestResolve_PerChartIsolation(t *testing.T) {
	snap := platform.NewSnapshot()
	snap.SetStudy(1, platform.StudyRef{ID: 5, Name: "Volume Weighted Average Price"}, 0, nil)
	snap.SetStudy(2, platform.StudyRef{ID: 8, Name: "Volume Weighted Average Price"}, 0, nil)

	r := New(snap, nil)
	spec := Spec{Names: []string{"Volume Weighted Average Price"}}

	b1, _ := r.Resolve(1, "vwap", spec)
	b2, _ := r.Resolve(2, "vwap", spec)
	if b1.StudyID != 5 || b2.StudyID != 8 {
		t.Errorf("Expected per-chart bindings 5 and 8, got %d and %d", b1.StudyID, b2.StudyID)
	}
}

package renditions

import (
	"errors"
	"reflect"
	"testing"

	"kinotek/internal/media/probe"
)

func testLadders() []Ladder {
	return []Ladder{
		{
			Name:   "16:9",
			Ratios: []float64{1.77, 1.78},
			Rungs: []Rung{
				{426, 240}, {640, 360}, {854, 480}, {1280, 720},
				{1920, 1080}, {2560, 1440}, {3840, 2160},
			},
		},
		{
			Name:   "2:1",
			Ratios: []float64{2.00},
			Rungs:  []Rung{{480, 240}, {720, 360}, {960, 480}, {1440, 720}, {2160, 1080}},
		},
	}
}

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	planner, err := NewPlanner(testLadders())
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	return planner
}

func TestPlanFullHD(t *testing.T) {
	planner := newTestPlanner(t)
	got, err := planner.Plan(probe.Resolution{Width: 1920, Height: 1080})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := []Rung{{426, 240}, {640, 360}, {854, 480}, {1280, 720}, {1920, 1080}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("plan = %v, want %v", got, want)
	}
}

func TestPlanNeverExceedsSourceWidthAndSortsAscending(t *testing.T) {
	planner := newTestPlanner(t)
	sources := []probe.Resolution{
		{Width: 854, Height: 480},
		{Width: 1280, Height: 720},
		{Width: 1920, Height: 1080},
		{Width: 3840, Height: 2160},
		{Width: 2160, Height: 1080},
	}
	for _, src := range sources {
		plan, err := planner.Plan(src)
		if err != nil {
			t.Fatalf("plan %dx%d: %v", src.Width, src.Height, err)
		}
		prev := 0
		for _, rung := range plan {
			if rung.Width > src.Width {
				t.Errorf("source %dx%d: rung %v exceeds source width", src.Width, src.Height, rung)
			}
			if rung.Width <= prev {
				t.Errorf("source %dx%d: plan not ascending: %v", src.Width, src.Height, plan)
			}
			prev = rung.Width
		}
	}
}

func TestPlanDeterministic(t *testing.T) {
	planner := newTestPlanner(t)
	src := probe.Resolution{Width: 1280, Height: 720}
	first, err := planner.Plan(src)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	second, err := planner.Plan(src)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("plans differ: %v vs %v", first, second)
	}
}

func TestPlanTwoToOneBucket(t *testing.T) {
	planner := newTestPlanner(t)
	got, err := planner.Plan(probe.Resolution{Width: 1440, Height: 720})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := []Rung{{480, 240}, {720, 360}, {960, 480}, {1440, 720}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("plan = %v, want %v", got, want)
	}
}

func TestPlanUnrecognizedRatio(t *testing.T) {
	planner := newTestPlanner(t)
	_, err := planner.Plan(probe.Resolution{Width: 1440, Height: 1080}) // 4:3
	if !errors.Is(err, ErrUnsupportedAspectRatio) {
		t.Fatalf("expected ErrUnsupportedAspectRatio, got %v", err)
	}
}

func TestPlanNarrowSourceGetsLowestRung(t *testing.T) {
	planner := newTestPlanner(t)
	got, err := planner.Plan(probe.Resolution{Width: 320, Height: 180})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := []Rung{{426, 240}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("plan = %v, want %v", got, want)
	}
}

func TestRungLabel(t *testing.T) {
	if got := (Rung{1920, 1080}).Label(); got != "1080p" {
		t.Fatalf("label = %q, want 1080p", got)
	}
}

func TestNewPlannerRejectsEmpty(t *testing.T) {
	if _, err := NewPlanner(nil); err == nil {
		t.Fatal("expected error for empty ladder set")
	}
}

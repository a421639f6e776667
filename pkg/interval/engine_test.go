package interval

import (
	"testing"
	"time"

	"mentorly/pkg/model"
)

const maxPeriodSecs = 86400 * 31

func slot(id string, dtstart, dtend int64) *model.TimeSlot {
	return &model.TimeSlot{
		ID:       id,
		UserID:   "user-1",
		DTType:   model.SlotAllow,
		DTStart:  dtstart,
		DTEnd:    dtend,
		Timezone: "UTC",
	}
}

func TestExpandPassThrough(t *testing.T) {
	engine := NewEngine(maxPeriodSecs)

	s := slot("a", 1000, 2000)
	occurrences, err := engine.Expand([]*model.TimeSlot{s}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(occurrences) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occurrences))
	}
	if occurrences[0].DTStart != 1000 || occurrences[0].DTEnd != 2000 {
		t.Errorf("occurrence window changed: got (%d, %d)", occurrences[0].DTStart, occurrences[0].DTEnd)
	}
	if occurrences[0].ID != "a" {
		t.Errorf("expected source fields copied, got id %q", occurrences[0].ID)
	}
}

func TestExpandDailyRule(t *testing.T) {
	engine := NewEngine(maxPeriodSecs)

	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC).Unix()
	s := slot("a", start, start+3600)
	s.RRule = "FREQ=DAILY;COUNT=3"

	occurrences, err := engine.Expand([]*model.TimeSlot{s}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(occurrences) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(occurrences))
	}
	for i, occ := range occurrences {
		wantStart := start + int64(i)*86400
		if occ.DTStart != wantStart {
			t.Errorf("occurrence %d: expected dtstart %d, got %d", i, wantStart, occ.DTStart)
		}
		if occ.DTEnd != wantStart+3600 {
			t.Errorf("occurrence %d: duration not preserved, got dtend %d", i, occ.DTEnd)
		}
	}
}

func TestExpandSkipsExcludedDates(t *testing.T) {
	engine := NewEngine(maxPeriodSecs)

	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC).Unix()
	s := slot("a", start, start+3600)
	s.RRule = "FREQ=DAILY;COUNT=3"
	s.ExDate = []int64{start + 86400}

	occurrences, err := engine.Expand([]*model.TimeSlot{s}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(occurrences) != 2 {
		t.Fatalf("expected 2 occurrences after exclusion, got %d", len(occurrences))
	}
	for _, occ := range occurrences {
		if occ.DTStart == start+86400 {
			t.Errorf("excluded instance was emitted")
		}
	}
}

func TestExpandHonorsExplicitUntil(t *testing.T) {
	engine := NewEngine(maxPeriodSecs)

	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC).Unix()
	s := slot("a", start, start+3600)
	s.RRule = "FREQ=DAILY"

	occurrences, err := engine.Expand([]*model.TimeSlot{s}, start+2*86400)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(occurrences) != 3 {
		t.Fatalf("expected 3 occurrences up to horizon, got %d", len(occurrences))
	}
}

func TestExpandRejectsBadRule(t *testing.T) {
	engine := NewEngine(maxPeriodSecs)

	s := slot("a", 1000, 2000)
	s.RRule = "FREQ=SOMETIMES"

	if _, err := engine.Expand([]*model.TimeSlot{s}, 0); err == nil {
		t.Fatal("expected error for unparseable rule")
	}
}

func TestDetectOverlapsAnchorNotAdvanced(t *testing.T) {
	engine := NewEngine(maxPeriodSecs)

	a := slot("a", 1000, 2000)
	b := slot("b", 1500, 2500)

	report, err := engine.DetectOverlaps([]*model.TimeSlot{a, b}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(report.Conflicts))
	}
	if report.Conflicts[0].First.ID != "a" || report.Conflicts[0].Second.ID != "b" {
		t.Errorf("expected pair (a, b), got (%s, %s)",
			report.Conflicts[0].First.ID, report.Conflicts[0].Second.ID)
	}

	// c abuts a at 2000; strict comparison means no new conflict.
	c := slot("c", 2000, 3000)
	report, err = engine.DetectOverlaps([]*model.TimeSlot{a, b, c}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Conflicts) != 1 {
		t.Fatalf("expected abutting window to add no conflict, got %d", len(report.Conflicts))
	}
}

func TestDetectOverlapsClusterReportedAgainstAnchor(t *testing.T) {
	engine := NewEngine(maxPeriodSecs)

	a := slot("a", 1000, 2000)
	b := slot("b", 1100, 2100)
	c := slot("c", 1200, 2200)

	report, err := engine.DetectOverlaps([]*model.TimeSlot{a, b, c}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %d", len(report.Conflicts))
	}
	for i, pair := range report.Conflicts {
		if pair.First.ID != "a" {
			t.Errorf("conflict %d: expected anchor a, got %s", i, pair.First.ID)
		}
	}
}

func TestDetectOverlapsOrderIndependent(t *testing.T) {
	engine := NewEngine(maxPeriodSecs)

	a := slot("a", 1000, 2000)
	b := slot("b", 1500, 2500)

	forward, err := engine.DetectOverlaps([]*model.TimeSlot{a, b}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reversed, err := engine.DetectOverlaps([]*model.TimeSlot{b, a}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(forward.Conflicts) != len(reversed.Conflicts) {
		t.Fatalf("conflict count depends on input order: %d vs %d",
			len(forward.Conflicts), len(reversed.Conflicts))
	}
	if forward.Conflicts[0].First.ID != reversed.Conflicts[0].First.ID {
		t.Errorf("anchor depends on input order: %s vs %s",
			forward.Conflicts[0].First.ID, reversed.Conflicts[0].First.ID)
	}
}

func TestDetectOverlapsEmptyAndSingle(t *testing.T) {
	engine := NewEngine(maxPeriodSecs)

	report, err := engine.DetectOverlaps(nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.HasConflicts() {
		t.Error("empty input reported conflicts")
	}

	report, err = engine.DetectOverlaps([]*model.TimeSlot{slot("a", 1000, 2000)}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.HasConflicts() {
		t.Error("single slot reported conflicts")
	}
}

func TestMergeForValidation(t *testing.T) {
	storedA := slot("a", 1000, 2000)
	storedB := slot("b", 3000, 4000)

	editedA := slot("a", 1500, 2500)
	fresh := slot("", 5000, 6000)

	merged := MergeForValidation(
		[]*model.TimeSlot{storedA, storedB},
		[]*model.TimeSlot{editedA, fresh},
	)

	if len(merged) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(merged))
	}

	byID := make(map[string]*model.TimeSlot)
	for _, s := range merged {
		byID[s.ID] = s
	}
	if byID["a"].DTStart != 1500 {
		t.Errorf("edited slot not validated at proposed time, got dtstart %d", byID["a"].DTStart)
	}
	if byID["b"].DTStart != 3000 {
		t.Errorf("untouched stored slot changed, got dtstart %d", byID["b"].DTStart)
	}
	if byID[""].DTStart != 5000 {
		t.Errorf("new slot missing from validation set")
	}
}

func TestMergeForValidationKeepsEditOutsideStoredSet(t *testing.T) {
	// The edit moves slot "a" far from its stored window, so the stored
	// fetch may not return it. The edit must still be validated.
	stored := []*model.TimeSlot{slot("b", 3000, 4000)}
	editedA := slot("a", 90000, 91000)

	merged := MergeForValidation(stored, []*model.TimeSlot{editedA})

	if len(merged) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(merged))
	}
	found := false
	for _, s := range merged {
		if s.ID == "a" && s.DTStart == 90000 {
			found = true
		}
	}
	if !found {
		t.Error("edited slot absent from validation set")
	}
}

package interval

import (
	"fmt"
	"sort"
	"time"

	"mentorly/pkg/model"

	"github.com/teambition/rrule-go"
)

// Occurrence is one concrete time window produced by expanding a slot's
// recurrence rule. Never persisted; it carries a copy of the source slot
// with DTStart/DTEnd rewritten to the generated instance.
type Occurrence struct {
	model.TimeSlot
}

// ConflictPair snapshots the two colliding windows. First is the sweep
// anchor, Second the occurrence that started before the anchor ended.
type ConflictPair struct {
	First  model.TimeSlot `json:"first"`
	Second model.TimeSlot `json:"second"`
}

// ConflictReport is the structured result of an overlap sweep. Conflicts
// are indexed in detection order; Summary names the affected month span.
type ConflictReport struct {
	Conflicts []ConflictPair `json:"conflicts"`
	Summary   string         `json:"summary,omitempty"`
}

func (r *ConflictReport) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// ToDetails renders the report as an error-payload map, one entry per
// conflict index plus the summary.
func (r *ConflictReport) ToDetails() map[string]any {
	details := make(map[string]any, len(r.Conflicts)+1)
	for i, pair := range r.Conflicts {
		details[fmt.Sprintf("conflict_%d", i)] = pair
	}
	details["summary"] = r.Summary
	return details
}

// Engine expands recurrence rules and sweeps the resulting occurrences
// for overlaps. Pure in-memory computation shared by the booking and
// availability flows.
type Engine struct {
	maxPeriodSecs int64
}

func NewEngine(maxPeriodSecs int64) *Engine {
	return &Engine{maxPeriodSecs: maxPeriodSecs}
}

// Expand materializes every slot into concrete occurrences up to the
// horizon. Slots without a rule pass through as exactly one occurrence.
// The horizon is the caller's explicit until when positive, otherwise
// min(dtstart) across the input plus the configured max period.
func (e *Engine) Expand(slots []*model.TimeSlot, until int64) ([]Occurrence, error) {
	if len(slots) == 0 {
		return nil, nil
	}

	horizon := until
	if horizon <= 0 {
		minStart := slots[0].DTStart
		for _, slot := range slots[1:] {
			if slot.DTStart < minStart {
				minStart = slot.DTStart
			}
		}
		horizon = minStart + e.maxPeriodSecs
	}

	occurrences := make([]Occurrence, 0, len(slots))
	for _, slot := range slots {
		if slot.RRule == "" {
			occurrences = append(occurrences, Occurrence{TimeSlot: *slot})
			continue
		}

		expanded, err := expandRule(slot, horizon)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, expanded...)
	}

	return occurrences, nil
}

// expandRule generates one occurrence per rule instance, anchored at the
// slot's dtstart and preserving its duration. Instants listed in exdate
// are skipped.
func expandRule(slot *model.TimeSlot, horizon int64) ([]Occurrence, error) {
	loc, err := time.LoadLocation(slot.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", slot.Timezone, err)
	}

	opt, err := rrule.StrToROption(slot.RRule)
	if err != nil {
		return nil, fmt.Errorf("invalid rrule %q: %w", slot.RRule, err)
	}
	opt.Dtstart = time.Unix(slot.DTStart, 0).In(loc)

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("invalid rrule %q: %w", slot.RRule, err)
	}

	excluded := make(map[int64]struct{}, len(slot.ExDate))
	for _, ex := range slot.ExDate {
		excluded[ex] = struct{}{}
	}

	duration := slot.DTEnd - slot.DTStart
	instances := rule.Between(opt.Dtstart, time.Unix(horizon, 0).In(loc), true)

	occurrences := make([]Occurrence, 0, len(instances))
	for _, instance := range instances {
		start := instance.Unix()
		if _, skip := excluded[start]; skip {
			continue
		}

		occ := Occurrence{TimeSlot: *slot}
		occ.DTStart = start
		occ.DTEnd = start + duration
		occ.DTYear = instance.Year()
		occ.DTMonth = int(instance.Month())
		occurrences = append(occurrences, occ)
	}

	return occurrences, nil
}

// DetectOverlaps expands the slots and runs a single greedy sweep over
// the occurrences sorted by dtend. The first window of any overlapping
// cluster stays the comparison anchor until a window starts at or after
// its end, so every member of the cluster is reported against it.
// Abutting windows do not overlap; the comparison is strict.
func (e *Engine) DetectOverlaps(slots []*model.TimeSlot, until int64) (*ConflictReport, error) {
	occurrences, err := e.Expand(slots, until)
	if err != nil {
		return nil, err
	}

	report := &ConflictReport{}
	if len(occurrences) < 2 {
		return report, nil
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		return occurrences[i].DTEnd < occurrences[j].DTEnd
	})

	prev := occurrences[0]
	for _, cur := range occurrences[1:] {
		if cur.DTStart < prev.DTEnd {
			report.Conflicts = append(report.Conflicts, ConflictPair{
				First:  prev.TimeSlot,
				Second: cur.TimeSlot,
			})
			continue
		}
		prev = cur
	}

	if report.HasConflicts() {
		first := occurrences[0]
		last := occurrences[len(occurrences)-1]
		report.Summary = fmt.Sprintf("%d conflict(s) between y/%d/m/%d and y/%d/m/%d",
			len(report.Conflicts), first.DTYear, first.DTMonth, last.DTYear, last.DTMonth)
	}

	return report, nil
}

// MergeForValidation builds the set a save request is validated against:
// stored slots, with any slot whose id also appears in submitted replaced
// by the submitted version, plus submitted slots that have no id yet.
// Edits are checked at their proposed times while untouched stored slots
// still contribute to conflict detection.
func MergeForValidation(stored, submitted []*model.TimeSlot) []*model.TimeSlot {
	replacements := make(map[string]*model.TimeSlot, len(submitted))
	for _, slot := range submitted {
		if slot.ID != "" {
			replacements[slot.ID] = slot
		}
	}

	merged := make([]*model.TimeSlot, 0, len(stored)+len(submitted))
	for _, slot := range stored {
		if replacement, ok := replacements[slot.ID]; ok {
			merged = append(merged, replacement)
			delete(replacements, slot.ID)
			continue
		}
		merged = append(merged, slot)
	}

	// Edits whose stored row sits outside the fetched window still count.
	for _, slot := range submitted {
		if slot.ID == "" {
			merged = append(merged, slot)
		} else if _, pending := replacements[slot.ID]; pending {
			merged = append(merged, slot)
		}
	}

	return merged
}

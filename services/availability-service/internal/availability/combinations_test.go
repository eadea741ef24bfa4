package availability

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
)

func daySlot(name, start, end string, hours, price float64) PricedSlot {
	return PricedSlot{
		Slot: model.TimeSlot{
			ID:            uuid.New(),
			Name:          name,
			StartTime:     start,
			EndTime:       end,
			DurationHours: hours,
			IsActive:      true,
		},
		Price: price,
	}
}

func comboKey(c Combination) string {
	return strings.Join(c.SlotNames, "+")
}

func TestConsecutiveCombinations_ThreeAdjacent(t *testing.T) {
	slots := []PricedSlot{
		daySlot("morning", "08:00", "12:00", 4, 100),
		daySlot("afternoon", "12:00", "16:00", 4, 120),
		daySlot("evening", "16:00", "20:00", 4, 150),
	}

	combos := ConsecutiveCombinations(slots)
	if len(combos) != 6 {
		t.Fatalf("expected 6 combinations, got %d", len(combos))
	}

	got := make(map[string]Combination, len(combos))
	for _, c := range combos {
		got[comboKey(c)] = c
	}
	for _, want := range []string{
		"morning", "morning+afternoon", "morning+afternoon+evening",
		"afternoon", "afternoon+evening", "evening",
	} {
		if _, ok := got[want]; !ok {
			t.Fatalf("missing combination %q", want)
		}
	}

	full := got["morning+afternoon+evening"]
	if full.StartTime != "08:00" || full.EndTime != "20:00" {
		t.Fatalf("full run spans %s-%s", full.StartTime, full.EndTime)
	}
	if full.TotalPrice != 370 {
		t.Fatalf("full run price = %v, want 370", full.TotalPrice)
	}
	if full.TotalHours != 12 {
		t.Fatalf("full run hours = %v, want 12", full.TotalHours)
	}
}

func TestConsecutiveCombinations_GapBreaksChain(t *testing.T) {
	slots := []PricedSlot{
		daySlot("morning", "08:00", "12:00", 4, 100),
		daySlot("evening", "16:00", "20:00", 4, 150),
	}

	combos := ConsecutiveCombinations(slots)
	if len(combos) != 2 {
		t.Fatalf("expected only singles across a gap, got %d combos", len(combos))
	}
	for _, c := range combos {
		if len(c.SlotIDs) != 1 {
			t.Fatalf("unexpected multi-slot combination %v", c.SlotNames)
		}
	}
}

func TestConsecutiveCombinations_UnsortedInput(t *testing.T) {
	slots := []PricedSlot{
		daySlot("afternoon", "12:00", "16:00", 4, 120),
		daySlot("morning", "08:00", "12:00", 4, 100),
	}

	combos := ConsecutiveCombinations(slots)
	if len(combos) != 3 {
		t.Fatalf("expected 3 combinations, got %d", len(combos))
	}
	var joined bool
	for _, c := range combos {
		if comboKey(c) == "morning+afternoon" {
			joined = true
			if c.StartTime != "08:00" || c.EndTime != "16:00" {
				t.Fatalf("joined run spans %s-%s", c.StartTime, c.EndTime)
			}
		}
	}
	if !joined {
		t.Fatal("expected morning+afternoon run despite unsorted input")
	}
}

func TestConsecutiveCombinations_SlicesIndependent(t *testing.T) {
	slots := []PricedSlot{
		daySlot("a", "08:00", "12:00", 4, 100),
		daySlot("b", "12:00", "16:00", 4, 120),
		daySlot("c", "16:00", "20:00", 4, 150),
	}
	combos := ConsecutiveCombinations(slots)
	for _, c := range combos {
		if comboKey(c) == "a+b" && len(c.SlotIDs) != 2 {
			t.Fatalf("a+b run mutated to %d ids", len(c.SlotIDs))
		}
	}
}

func TestAreConsecutive(t *testing.T) {
	a := daySlot("a", "08:00", "12:00", 4, 0).Slot
	b := daySlot("b", "12:00", "16:00", 4, 0).Slot
	c := daySlot("c", "16:30", "20:00", 3.5, 0).Slot

	if AreConsecutive(nil) {
		t.Fatal("empty selection must not validate")
	}
	if !AreConsecutive([]model.TimeSlot{a}) {
		t.Fatal("single slot is trivially consecutive")
	}
	if !AreConsecutive([]model.TimeSlot{b, a}) {
		t.Fatal("order of the client selection must not matter")
	}
	if AreConsecutive([]model.TimeSlot{a, b, c}) {
		t.Fatal("30 minute gap before c must fail")
	}
	if AreConsecutive([]model.TimeSlot{a, c}) {
		t.Fatal("non-adjacent slots must fail")
	}
}

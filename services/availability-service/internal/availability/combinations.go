package availability

import (
	"sort"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
)

// PricedSlot pairs a day-use slot with its resolved price for one date.
type PricedSlot struct {
	Slot  model.TimeSlot
	Price float64
}

// Combination is a contiguous run of day-use slots bookable as one session.
type Combination struct {
	SlotIDs    []uuid.UUID
	SlotNames  []string
	StartTime  string
	EndTime    string
	TotalHours float64
	TotalPrice float64
}

// ConsecutiveCombinations enumerates every contiguous grouping of the given
// day-use slots: each slot alone, then every run extended while one slot's
// end clock exactly equals the next slot's start clock. Exact adjacency, not
// overlap tolerance; the first gap breaks the chain. Bounded O(n^2) on the
// handful of slots a chalet configures.
//
// For slots A(08-12), B(12-16), C(16-20) this yields exactly
// {A}, {A,B}, {A,B,C}, {B}, {B,C}, {C}.
func ConsecutiveCombinations(slots []PricedSlot) []Combination {
	sorted := make([]PricedSlot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, _ := ClockMinutes(sorted[i].Slot.StartTime)
		b, _ := ClockMinutes(sorted[j].Slot.StartTime)
		return a < b
	})

	var combos []Combination
	for i := range sorted {
		run := Combination{
			SlotIDs:    []uuid.UUID{sorted[i].Slot.ID},
			SlotNames:  []string{sorted[i].Slot.Name},
			StartTime:  sorted[i].Slot.StartTime,
			EndTime:    sorted[i].Slot.EndTime,
			TotalHours: sorted[i].Slot.DurationHours,
			TotalPrice: sorted[i].Price,
		}
		combos = append(combos, cloneCombination(run))

		for j := i + 1; j < len(sorted); j++ {
			if !adjacent(sorted[j-1].Slot, sorted[j].Slot) {
				break
			}
			run.SlotIDs = append(run.SlotIDs, sorted[j].Slot.ID)
			run.SlotNames = append(run.SlotNames, sorted[j].Slot.Name)
			run.EndTime = sorted[j].Slot.EndTime
			run.TotalHours += sorted[j].Slot.DurationHours
			run.TotalPrice += sorted[j].Price
			combos = append(combos, cloneCombination(run))
		}
	}
	return combos
}

// AreConsecutive is the authoritative server-side gate for a client-supplied
// multi-slot selection: re-sorted by start time, every slot's end must
// exactly equal the next slot's start.
func AreConsecutive(slots []model.TimeSlot) bool {
	if len(slots) == 0 {
		return false
	}
	if len(slots) == 1 {
		return true
	}
	sorted := make([]model.TimeSlot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, _ := ClockMinutes(sorted[i].StartTime)
		b, _ := ClockMinutes(sorted[j].StartTime)
		return a < b
	})
	for i := 1; i < len(sorted); i++ {
		if !adjacent(sorted[i-1], sorted[i]) {
			return false
		}
	}
	return true
}

func adjacent(prev, next model.TimeSlot) bool {
	prevEnd, err := ClockMinutes(prev.EndTime)
	if err != nil {
		return false
	}
	nextStart, err := ClockMinutes(next.StartTime)
	if err != nil {
		return false
	}
	return prevEnd == nextStart
}

func cloneCombination(c Combination) Combination {
	out := c
	out.SlotIDs = append([]uuid.UUID(nil), c.SlotIDs...)
	out.SlotNames = append([]string(nil), c.SlotNames...)
	return out
}

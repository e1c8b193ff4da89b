package batch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Strategy selects how units are grouped into batches.
type Strategy string

const (
	// UnitPerBatch produces one batch per unit identifier.
	UnitPerBatch Strategy = "unit-per-batch"

	// FixedSizeGrouping chunks units into runs of a fixed size. The last
	// chunk may be shorter.
	FixedSizeGrouping Strategy = "fixed-size-grouping"
)

var (
	// ErrInvalidBatchSize is returned when FixedSizeGrouping gets a size < 1.
	ErrInvalidBatchSize = errors.New("batch size must be >= 1")

	// ErrUnknownStrategy is returned for strategy names the planner does not know.
	ErrUnknownStrategy = errors.New("unknown batch strategy")
)

// ParseStrategy converts a strategy name. The short aliases "page" and
// "group" are accepted for command line use.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(UnitPerBatch), "page", "single":
		return UnitPerBatch, nil
	case string(FixedSizeGrouping), "group", "grouped":
		return FixedSizeGrouping, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Batch is a planned group of units. Batches are immutable once planned.
type Batch struct {
	// ID is the 1-based position of the batch in the plan.
	ID int `json:"id"`

	// UnitIDs are the unit identifiers in input order.
	UnitIDs []int `json:"unit_ids"`

	// DisplayRange is "first-last" for consecutive ids, otherwise a comma list.
	DisplayRange string `json:"display_range"`
}

// Plan partitions unitIDs according to strategy. size is only used by
// FixedSizeGrouping. An empty input yields an empty plan.
func Plan(unitIDs []int, strategy Strategy, size int) ([]Batch, error) {
	switch strategy {
	case UnitPerBatch:
		size = 1
	case FixedSizeGrouping:
		if size < 1 {
			return nil, fmt.Errorf("%w (got %d)", ErrInvalidBatchSize, size)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	batches := make([]Batch, 0, (len(unitIDs)+size-1)/size)
	for start := 0; start < len(unitIDs); start += size {
		end := min(start+size, len(unitIDs))
		ids := make([]int, end-start)
		copy(ids, unitIDs[start:end])

		batches = append(batches, Batch{
			ID:           len(batches) + 1,
			UnitIDs:      ids,
			DisplayRange: DisplayRange(ids),
		})
	}
	return batches, nil
}

// DisplayRange renders ids as "first-last" when they are strictly
// consecutive ascending integers, "first" for a single id, and the comma
// joined list otherwise.
func DisplayRange(ids []int) string {
	switch len(ids) {
	case 0:
		return ""
	case 1:
		return strconv.Itoa(ids[0])
	}

	consecutive := true
	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[i-1]+1 {
			consecutive = false
			break
		}
	}
	if consecutive {
		return fmt.Sprintf("%d-%d", ids[0], ids[len(ids)-1])
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// Range returns the inclusive unit id range 1..n.
func Range(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

// Package batch partitions an ordered list of work-unit identifiers into
// batches that are each sent to the generation service as one request.
//
// Example usage:
//
//	batches, err := batch.Plan([]int{1, 2, 3, 4, 5, 6, 7}, batch.FixedSizeGrouping, 3)
//	// batches[0].DisplayRange == "1-3", batches[2].DisplayRange == "7"
//
// The planner:
//   - Keeps the input order of unit identifiers
//   - Has no side effects, so identical inputs yield identical plans
//   - Labels each batch with a human readable display range
package batch

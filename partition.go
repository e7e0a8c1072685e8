package primeshard

import "fmt"

// PartitionStrategy turns size constraints into a PartitionPlan. It is a
// pure function: no state, no I/O (spec.md §4.5), grounded on the teacher's
// plain-function config-resolution style rather than any stateful type.
type PartitionStrategy struct{}

// NewPartitionStrategy returns the stateless strategy.
func NewPartitionStrategy() PartitionStrategy { return PartitionStrategy{} }

// CalculatePlan derives a PartitionPlan for totalItems items of
// itemByteSize bytes each. targetShardCount, targetChunksPerShard,
// maxShardBytes, and maxChunkBytes are all optional: pass 0 to omit a
// target count, and 0 to omit a byte limit (letting resolveLimit fall back
// to its default).
func (PartitionStrategy) CalculatePlan(
	totalItems uint64,
	itemByteSize uint64,
	targetShardCount int,
	targetChunksPerShard int,
	maxShardBytes uint64,
	maxChunkBytes uint64,
) (PartitionPlan, error) {
	itemsPerShard, err := resolveLimit(totalItems, itemByteSize, targetShardCount, maxShardBytes, DefaultShardBytes)
	if err != nil {
		return PartitionPlan{}, err
	}

	itemsPerChunk, err := resolveLimit(itemsPerShard, itemByteSize, targetChunksPerShard, maxChunkBytes, DefaultChunkBytes)
	if err != nil {
		return PartitionPlan{}, err
	}

	if itemsPerChunk > itemsPerShard {
		itemsPerChunk = itemsPerShard
	}

	plan := PartitionPlan{
		ItemsPerShard:  itemsPerShard,
		ItemsPerChunk:  itemsPerChunk,
		ChunksPerShard: ceilDiv(itemsPerShard, itemsPerChunk),
		TotalShards:    ceilDiv(totalItems, itemsPerShard),
		TotalChunks:    ceilDiv(totalItems, itemsPerChunk),
	}

	return plan, nil
}

// resolveLimit implements spec.md §4.5's two-level resolution helper.
//
// If targetCount > 0, the limit is ceil(totalItems / targetCount) and the
// byte limits are ignored entirely. A targetCount of exactly 0 means "not
// supplied"; a negative targetCount is rejected, matching the "target_count
// = 0 -> InvalidArgument" rule extended to cover the otherwise-unreachable
// negative case.
//
// Otherwise the limit is max(1, limitBytes / itemBytes), where limitBytes
// is maxBytes if positive, else defaultBytes.
func resolveLimit(totalItems, itemBytes uint64, targetCount int, maxBytes, defaultBytes uint64) (uint64, error) {
	if itemBytes == 0 {
		return 0, fmt.Errorf("%w: item byte size must be positive", ErrInvalidArgument)
	}

	if targetCount < 0 {
		return 0, fmt.Errorf("%w: target count must be positive", ErrInvalidArgument)
	}

	if targetCount > 0 {
		return ceilDivU64(totalItems, uint64(targetCount)), nil
	}

	limitBytes := maxBytes
	if limitBytes == 0 {
		limitBytes = defaultBytes
	}

	if limitBytes == 0 {
		return 0, fmt.Errorf("%w: no byte limit or target count supplied", ErrInvalidArgument)
	}

	limit := limitBytes / itemBytes
	if limit < 1 {
		limit = 1
	}

	return limit, nil
}

// ceilDiv computes ceil(a/b) for uint64 a over a uint64 b, returning an int
// (every derived count field in PartitionPlan is an int).
func ceilDiv(a, b uint64) int {
	return int(ceilDivU64(a, b))
}

func ceilDivU64(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}

	return (a + b - 1) / b
}

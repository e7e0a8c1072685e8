package primeshard

// Item is the element type this store persists. The store treats items
// opaquely (spec.md §3): they must be sorted ascending with no duplicates by
// the time they're partitioned, which Save enforces by normalizing its
// input. This build fixes the width at 64 bits; ItemSize records that
// choice in metadata for forward documentation, not configurability.
type Item = uint64

// ItemSize is the fixed byte width of Item, recorded in metadata as
// "itemsize" (spec.md §3).
const ItemSize = 8

// Interval is an inclusive [Min, Max] range over Items. Shard and chunk
// records both carry one (spec.md §9: "intervals in metadata are inclusive
// on both ends").
type Interval struct {
	Min Item `json:"min"`
	Max Item `json:"max"`
}

// Intersects reports whether i and other overlap, using the predicate
// spec.md §4.6/§9 names as correct: r_lo < p_hi && p_lo < r_hi. Because
// shard intervals are disjoint, a shared boundary (i.Max == other.Min) is
// not an overlap, which is why both sides are strict.
func (i Interval) Intersects(other Interval) bool {
	return i.Min < other.Max && other.Min < i.Max
}

// empty reports whether an interval is reversed or degenerate (max < min).
// A single-item interval (min == max) is valid; only min > max is rejected.
func (i Interval) empty() bool {
	return i.Max < i.Min
}

// ChunkRecord is a chunk's entry inside its shard's metadata record: just
// the interval it covers. The chunk's name is the map key it's stored
// under, not a field here (spec.md §3).
type ChunkRecord struct {
	Min Item `json:"min"`
	Max Item `json:"max"`
}

// ShardRecord is one shard's metadata entry (spec.md §3): its covered
// interval, its index in save order, how many chunks it holds, and each
// chunk's own interval keyed by chunk name.
type ShardRecord struct {
	PrimeInterval [2]Item                `json:"prime_interval"`
	ShardIndex    int                    `json:"shard_index"`
	ChunkCount    int                    `json:"chunk_count"`
	Chunks        map[string]ChunkRecord `json:"-"`
}

// Interval returns the shard's covered range as an Interval.
func (s ShardRecord) Interval() Interval {
	return Interval{Min: s.PrimeInterval[0], Max: s.PrimeInterval[1]}
}

// toMap flattens a ShardRecord into the shape the metadata document expects
// for a shard-path key: the three scalar fields plus one entry per chunk
// name, all siblings in the same JSON object (spec.md §3 and the `manager.py`
// original: `shard_metadata | chunk_metadata`).
func (s ShardRecord) toMap() map[string]any {
	out := map[string]any{
		"prime_interval": s.PrimeInterval,
		"shard_index":    s.ShardIndex,
		"chunk_count":    s.ChunkCount,
	}

	for name, c := range s.Chunks {
		out[name] = map[string]any{"min": c.Min, "max": c.Max}
	}

	return out
}

// shardRecordFromMap reverses toMap, recovering a ShardRecord from a raw
// JSON-decoded object. Unknown keys are treated as chunk records; this is
// how chunk entries and the three reserved scalar fields coexist in one
// object without a discriminator.
func shardRecordFromMap(raw map[string]any) (ShardRecord, bool) {
	rec := ShardRecord{Chunks: map[string]ChunkRecord{}}

	interval, ok := asIntervalPair(raw["prime_interval"])
	if !ok {
		return ShardRecord{}, false
	}

	rec.PrimeInterval = interval

	idx, ok := asInt(raw["shard_index"])
	if !ok {
		return ShardRecord{}, false
	}

	rec.ShardIndex = idx

	count, ok := asInt(raw["chunk_count"])
	if !ok {
		return ShardRecord{}, false
	}

	rec.ChunkCount = count

	for key, val := range raw {
		switch key {
		case "prime_interval", "shard_index", "chunk_count":
			continue
		}

		obj, ok := val.(map[string]any)
		if !ok {
			continue
		}

		minV, okMin := asUint(obj["min"])
		maxV, okMax := asUint(obj["max"])

		if okMin && okMax {
			rec.Chunks[key] = ChunkRecord{Min: minV, Max: maxV}
		}
	}

	return rec, true
}

// PartitionPlan is the immutable output of PartitionStrategy.CalculatePlan:
// how many items land in each shard and chunk, and how many shards/chunks
// result. It exists only for the duration of a Save/Repartition call; it is
// persisted nowhere except inside the metadata document's "config" field
// (spec.md §3).
type PartitionPlan struct {
	ItemsPerShard  uint64 `json:"items_per_shard"`
	ItemsPerChunk  uint64 `json:"items_per_chunk"`
	ChunksPerShard int    `json:"chunks_per_shard"`
	TotalShards    int    `json:"total_shards"`
	TotalChunks    int    `json:"total_chunks"`
}

// Reserved top-level keys in the MetadataDocument (spec.md §3).
const (
	keyChunkSize   = "chunk_size"
	keyShardSize   = "shard_size"
	keyItemSize    = "itemsize"
	keyTotalBytes  = "total_bytes"
	keyTotalItems  = "total_primes"
	keyShardPaths  = "shard_paths"
	keyTotalChunks = "total_chunks"
	keyTotalShards = "total_shards"
	keyConfigField = "config"
)

// MetadataDocument is the top-level keyed mapping MetadataFile persists:
// the reserved scalar fields above, plus one entry per shard path mapping to
// that shard's ShardRecord (as a plain map, so it round-trips through JSON
// without a custom (Un)MarshalJSON). encoding/json sorts map keys when
// marshaling, which is what gives the on-disk file spec.md §6's "keys are
// sorted" guarantee for free.
type MetadataDocument map[string]any

// shardPaths returns the document's "shard_paths" entry as a []string, or
// nil if absent/malformed.
func (d MetadataDocument) shardPaths() []string {
	raw, ok := d[keyShardPaths]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))

		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil
			}

			out = append(out, s)
		}

		return out
	default:
		return nil
	}
}

// shardRecord returns the ShardRecord stored under shardPath, if present and
// well-formed.
func (d MetadataDocument) shardRecord(shardPath string) (ShardRecord, bool) {
	raw, ok := d[shardPath]
	if !ok {
		return ShardRecord{}, false
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return ShardRecord{}, false
	}

	return shardRecordFromMap(obj)
}

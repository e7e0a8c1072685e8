// Package primeshard implements a sharded on-disk store for large sorted
// integer arrays: an input array is partitioned into size- or count-bounded
// shards, each shard split into named, independently compressed chunks, and
// the whole catalogued in a lock-protected, hash-attested JSON metadata
// file.
//
// The store is built from small collaborators that each own one file or one
// family of sibling files: HashFile streams a target file through SHA-256
// and attests it via a sibling digest; LockFile is a PID+timestamp advisory
// lock with staleness detection; MetadataFile is the JSON document gated by
// both; ShardFile reads and writes one shard through a pluggable archive
// Codec; PartitionStrategy is a pure function from size constraints to a
// plan; ShardManager orchestrates all of the above across Save, Load, and
// Repartition.
package primeshard

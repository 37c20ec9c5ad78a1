// Package shard packs corpus records into WebDataset-style TAR shards.
//
// Each shard holds up to a fixed number of record pairs; every record
// contributes a <prefix>.wav member and a <prefix>.json sidecar member
// under a prefix that is unique within the shard. The Packer keeps an
// explicit bounded buffer of one open shard: records are written through
// as they arrive, the shard is finalized and handed to its consumer when
// the buffer fills or the input ends, and processing is strictly
// sequential with halt-on-first-error semantics.
package shard

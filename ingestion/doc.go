// Package ingestion provides the streaming batch-ingestion engine that loads
// a line-delimited entity corpus into a graph store.
//
// A Pipeline runs its stages strictly in order:
//   - clear: wipes the store
//   - entities: upserts one node per item and property (create-if-absent)
//   - claims: builds the property name cache, then links entities and
//     writes generated literal nodes through the grouping stash
//   - derive: rewires unit and globe fields into edges
//
// Streaming stages drive a WorkerPool of C logical workers. Each worker pulls a
// batch from a BatchBuilder, whose reads are serialized, and writes through a
// RetryingWriter that retries transient store conflicts with exponential backoff.
// The first error from any worker cancels the stage and aborts the pipeline.
package ingestion

// Package job implements the lifecycle of trail generation jobs: the pure
// state transitions a worker drives a job through, the retry backoff policy,
// and the supervisory loops (retry scheduler and stale-processing sweeper)
// that keep the queue healthy across worker crashes and transient failures.
//
// Transitions are pure functions over domain.TrailGenerationJob values;
// persistence is the caller's concern. This keeps the state machine
// unit-testable without a database.
package job

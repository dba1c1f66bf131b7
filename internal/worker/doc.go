// Package worker contains the generation worker: blueprint matching, content
// assembly, and the job handler that drives a trail from generating to ready.
// Each job is owned end-to-end by one worker process; progress is persisted
// module-by-module so a crash mid-job leaves a valid partial trail.
package worker

// Package harvest defines the core types shared across the news pipeline:
// work items flowing through the queue, the content produced at each stage,
// the collaborator interfaces the pipeline calls, and the per-item outcome
// reported by workers.
package harvest

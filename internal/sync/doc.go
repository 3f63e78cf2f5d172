// Package sync runs the jobs that keep the local KvK store in step with the registry.
//
// # Jobs
//
//   - MutatieJob: stores the mutation signals of a time window, split into
//     windows the mutation API accepts
//   - ProfielJob: fetches records that are outdated or missing according to a
//     store.Gap and upserts them; one per record type
//
// Jobs treat a failed fetch for a single key as a per-key failure: it is logged,
// counted and skipped. A failed write aborts the cycle.
//
// # Runner
//
// A Runner executes a Job once or as a daemon. The daemon sleeps the configured
// interval between successful cycles and retries failed cycles with an exponential
// backoff that starts at one minute and is capped at the interval.
package sync

// Package cluster is a multi-process supervisor for a single-threaded
// network server. It starts N worker processes that all bind the same
// listening port, restarts workers that crash (subject to a sliding-window
// crash-rate limit), and can roll all workers through a fresh incarnation
// one at a time, so that only one worker is being replaced at any moment
// (with a single worker, that worker is down while it is replaced).
//
// A process calls Init once. In the resulting master process Init spawns
// the configured number of workers and returns (true, nil); the caller is
// then expected to call WaitWorkers, which runs the supervisor loop until
// every worker is terminal and any requested shutdown has completed. In
// each worker process, Init instead returns (false, nil) after assigning
// that worker its stable WorkerID and its inherited listening port; the
// caller's own server code runs from there.
//
// The package keeps a single process-wide supervisor instance, because the
// signal handlers that drive it can only safely communicate through
// process-global atomics (see signals.go). Embedding code is expected to
// call Init exactly once per process and treat the package-level functions
// as that instance's method set.
package cluster

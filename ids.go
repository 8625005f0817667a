package cluster

// WorkerID identifies a worker slot. Slot identity is stable across
// respawns; 0 is reserved to mean "not a worker" (the master, or a process
// on which Init has not yet run).
type WorkerID uint8

// MaxWorkers is the largest number of worker slots a single supervisor may
// manage, and the largest valid WorkerID.
const MaxWorkers = 254

// noWorker is the sentinel WorkerID observed in the master process.
const noWorker WorkerID = 0

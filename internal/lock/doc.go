// Package lock provides the executor's exclusive-lock primitive.
//
// The Lock interface models a non-reentrant mutual-exclusion lock whose
// init, acquire, release, and destroy transitions all report failure as
// values. Two realizations satisfy it: a one-token channel semaphore
// (NewSemaphore, the default) and a sync.Mutex wrapper (NewMutex). They
// are behaviorally interchangeable; which one an executor uses is a
// construction-time choice.
//
// Lock is not reentrant: a goroutine that acquires twice deadlocks
// against itself. The holder may Close the lock directly; release and
// destruction happen atomically so no other acquirer slips in between.
package lock

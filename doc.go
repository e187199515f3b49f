// Package asyncqueue provides a pair of cooperating concurrency primitives
// for decoupling many concurrent producers from a single, possibly slow,
// asynchronous consumer, without producers ever blocking on consumer work.
//
// The main components include:
//
//   - Queue: An unbounded multi-producer FIFO queue whose Dequeue suspends the
//     caller until an item arrives, with per-caller context cancellation and a
//     Close that releases every waiter instead of leaving it parked forever
//   - DoubleBufferTask: A double-buffered batching pipeline where producers
//     append cheaply to the current write buffer while a single background
//     loop swaps buffers in O(1) and hands each sealed batch to a user
//     handler, strictly one batch at a time, in the order batches were sealed
//
// Both primitives start working as soon as they are created and shut down
// cooperatively: Queue via Close, DoubleBufferTask via the Finish/Wait
// protocol, which guarantees that every added item reaches the handler in
// exactly one batch before Wait returns.
package asyncqueue

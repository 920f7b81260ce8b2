// Package dispatch delivers transport events to a consumer.
//
// The reader goroutine never calls the consumer directly. Every frame and
// termination notice is wrapped in a function and submitted to an Executor,
// which by default is a SerialQueue: an unbounded FIFO with one worker, so
// Delegate methods never run concurrently with each other.
package dispatch

// Package communicator coordinates the host session lifecycle.
//
// A Communicator starts a host through a config.Transport, runs one pump
// goroutine per session that reassembles frames with a frame.Accumulator,
// and hands frames and termination notices to a dispatch.Dispatcher.
//
// Only the session that is currently tracked may emit frames or report its
// exit. Sessions replaced by a restart or ended by Stop are stale and their
// exits are dropped, so the delegate hears about a termination at most once
// and only when it was not requested.
package communicator

// Package loop provides the cancellable poll loop behind clipwatch handles.
//
// A [Loop] calls a step function, waits a fixed interval on a timer, and
// repeats until the step reports it is done, the step fails, or the loop is
// stopped. There is no retry or backoff: a failing step ends the loop.
package loop

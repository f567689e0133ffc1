/*
Package resilience provides the failure-handling primitives used around
flaky external dependencies: a per-dependency circuit breaker and a
retry helper with cooperative cancellation.

# Circuit breaker

Each external dependency (itinerary AI, weather, geocoding) owns one
Breaker. The breaker is a three-state machine:

	Closed --[threshold failures]--> Open --[reset timeout]--> Half-Open
	                                  ^                            |
	                                  +---------[probe fails]------+
	                                         [probe succeeds] --> Closed

While open, calls short-circuit immediately: a supplied fallback is used,
otherwise the caller gets an *OpenError carrying the next attempt time.
A single call also runs under a hard timeout; exceeding it surfaces as a
*TimeoutError and counts as a breaker failure.

Breaker state is per-process and in-memory. In a multi-instance
deployment each instance tracks failures independently; that is an
accepted trade-off at this traffic scale, not a bug.

# Retry

Retry runs an operation up to MaxAttempts times with capped exponential
backoff. A CancellationToken lets an interactive caller abort between
attempts; cancellation never interrupts an attempt already in flight.
Progress callbacks fire before each attempt and before each wait so a
presentation layer can render live status.

The two mechanisms compose: a breaker typically wraps a single attempt
while Retry governs the attempt loop.
*/
package resilience

// Package engine implements the per-symbol order book and the matching
// algorithm for limit, market, and stop-loss orders, plus the dispatcher
// that routes order requests to the correct book under price-time
// priority.
//
// The book itself is domain-pure: it knows nothing about transports,
// persistence, or user accounting. Those are injected by callers as
// observers (trade and market-data sinks) and an optional risk checker.
package engine

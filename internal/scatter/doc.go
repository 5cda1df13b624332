// Package scatter implements the gateway's scatter-gather request handling.
//
// # Request Flow
//
// Orchestrator.Handle takes one prompt and:
//
//  1. Optionally runs every search adapter first and prepends their text as
//     context (enrichment), when the policy says so.
//  2. Invokes every chat adapter concurrently, each under its own timeout.
//  3. Waits for all of them. There is no early return on the first answer.
//  4. Picks the winner: the first adapter in registration order that
//     succeeded. Completion order never matters.
//  5. Appends one record to the request log, then increments the request
//     counter exactly once.
//
// Adapter failures and timeouts are data, not errors: they appear in
// Response.Results with OutcomeFailed or OutcomeTimedOut. When nothing
// succeeds the response carries NoResponseText and an empty Winner.
//
// # Cancellation
//
// Once dispatched, adapter calls run against a context detached from the
// caller, so a disconnecting client does not abort work whose result will
// still be logged and counted.
//
// Orchestrator.Drain is the shutdown half of that promise. It refuses new
// requests with ErrDraining and waits until every running one has been
// logged and counted, so the store can be closed after it returns.
//
// # Limits
//
// Config.MaxInFlight bounds concurrent requests process-wide. A caller that
// cannot get a slot before its context ends gets ErrAtCapacity.
// Config.MaxConcurrencyPerRequest bounds adapter calls within one request.
package scatter

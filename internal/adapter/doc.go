// Package adapter defines the backend adapter contract and its implementations.
//
// Every external backend is reached through an Adapter: one attempt per call,
// no retries, cancellation through the context. Failures wrap one of
// ErrUnauthenticated, ErrUnavailable, or ErrInvalidResponse.
//
// Adapters are collected in a Registry at startup. The registry never changes
// afterwards, and its order is the tie-break when several adapters succeed.
//
// Built-in adapters:
//
//	openai     OpenAI-compatible /chat/completions (OpenAI, xAI Grok)
//	anthropic  Anthropic /v1/messages
//	gemini     Google generateContent
//	tavily     Tavily web search (search capability)
package adapter

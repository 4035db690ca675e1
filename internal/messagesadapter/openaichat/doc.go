// Package openaichat serves Anthropic Messages requests from an OpenAI-compatible Chat
// Completions backend, letting Anthropic SDK clients talk to GPT, Azure OpenAI, DeepSeek and
// other compatible providers without code changes.
//
// The adapter handles:
//
//   - Model mapping: Claude model names are routed to a configured big/middle/small backend
//     model by tier marker (opus/sonnet/haiku). Names that already look like backend models
//     pass through unchanged.
//
//   - Message transformation: System prompts become a leading system message. Tool results
//     embedded in user messages are split into one tool message each and kept directly after
//     the assistant message that issued the calls (required by the backend's pairing rules).
//
//   - Content blocks: Text and base64 images map onto content parts. Tool results are
//     flattened to text through a fixed fallback chain. Blocks without a backend equivalent are
//     dropped.
//
//   - Streaming: Backend delta chunks are regrouped into content_block_start/delta/stop frames
//     with dense block indices by the Reassembler. Tool call arguments are forwarded as raw
//     partial JSON.
//
// Translation in both directions is total: malformed optional input degrades to a defined
// fallback instead of failing the request. Only transport failures surface as errors.
//
// # Adapters
//
// CreateMessageAdapter: Anthropic CreateMessage → OpenAI Chat Completions
package openaichat

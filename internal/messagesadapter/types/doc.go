// Package types provides the Anthropic Messages API types for server-side request/response
// handling.
//
// The types are hand-written rather than taken from anthropic-sdk-go:
//
//  1. SERVER-SIDE vs CLIENT-SIDE: The SDK param types are designed for building outbound
//     requests TO Anthropic. This proxy receives inbound requests FROM Anthropic clients, so
//     it needs types that decode every shape clients are allowed to send (string or block
//     content, string or list system prompts, heterogeneous tool results).
//
//  2. CLOSED UNIONS: Content blocks, stream events and deltas are modelled as sealed interfaces
//     with one struct per variant. The `type` discriminator is inspected exactly once, at the
//     JSON boundary, and translation code switches over concrete types.
//
//  3. SHARED VOCABULARY: Stop reasons reuse the SDK's constants so both directions of the
//     proxy agree with the official client on wire values.
package types

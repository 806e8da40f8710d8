// Package provider is the client for an OpenAI-compatible completion
// backend. Completion failures never surface as errors: the chat surface
// has no structured-error channel, so every outcome is folded into a
// Result whose text is either the model reply or a user-facing notice,
// with the Kind field preserving the classification for callers that
// need it (metrics, tests).
package provider

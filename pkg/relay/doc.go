// Package relay contains the conversation engine: it routes inbound
// OneBot events to commands or chat turns, assembles multimodal
// messages, maintains the per-session rolling context, and drives the
// completion backend. Event handling never returns an error; every
// failure becomes either a logged skip or a user-facing notice.
package relay

// Package prompt assembles the outbound message sequence for the relay. It
// is a pure transformation with no I/O, so the system prompt contract can be
// tested in isolation.
package prompt

import (
	"github.com/ledgerline/ledgerchat/server/relay"
)

// systemPreamble instructs the model on persona and grounding. The model
// must answer only from the supplied records and admit when they are not
// enough.
const systemPreamble = "You are a personal records assistant. You answer questions using only " +
	"the context supplied with each request: the user's sessions, notes, agenda " +
	"items, stakeholders, and transactions. Be concise and factual. If the " +
	"context does not contain enough information to answer, say so plainly " +
	"instead of guessing."

// contextSeparator sits between the preamble and the caller's records.
const contextSeparator = "\n\n--- Context (user's records) ---\n"

// noContext is substituted when the caller sends no context at all.
const noContext = "(no context)"

// System builds the synthesized system message for the given caller context.
func System(context string) relay.Message {
	if context == "" {
		context = noContext
	}
	return relay.Message{
		Role:    "system",
		Content: systemPreamble + contextSeparator + context,
	}
}

// Build returns the outbound message list: the system message followed by
// the caller's messages in their original order. Caller messages arrive
// already projected to role and content; roles are passed through without
// validation.
func Build(messages []relay.Message, context string) []relay.Message {
	out := make([]relay.Message, 0, len(messages)+1)
	out = append(out, System(context))
	out = append(out, messages...)
	return out
}

// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package agent turns a completion provider into a conversation.Responder.

# Overview

A Completer is what a conversation.Participant delegates to. For every turn
it maps the shared transcript into a provider prompt, trims it to the
model's context budget, and runs the provider/tool loop until the model
answers in plain text.

	transcript ──► BuildMessages ──► token trim ──► provider ⇄ tools ──► reply
	                                                    │
	                                        middleware.Chain per call

# Prompt mapping

  - The participant's instructions become the system message.
  - The participant's own earlier messages are sent as assistant turns.
  - Everything else (user input, other participants) is sent as user turns
    with the author carried in the message name.

# Observability

Each Respond call opens a client span named "chat <model>" carrying the
gen_ai.* request and usage attributes. Message content is attached only
when CompleterConfig.SensitiveData is set. Token usage can also be fed to a
UsageRecorder.
*/
package agent

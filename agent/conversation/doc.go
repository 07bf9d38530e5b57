// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package conversation orchestrates multi-participant conversations.

# Overview

An Orchestrator owns an ordered, immutable set of Participants and a
TerminationPolicy. Each user input starts a Session that lets participants
speak in fixed round-robin order, appending one Message per turn to an
append-only transcript, until the policy fires, the turn cap is reached, an
error occurs, or the caller cancels.

# Core types

  - Participant: id, display name and instructions, plus the Responder it
    delegates to. Never mutated after NewParticipant.
  - TerminationPolicy: ShouldTerminate(transcript) bool. KeywordPolicy
    (default keyword "approved"), NeverPolicy, AnyOf and PolicyFunc are
    provided.
  - Orchestrator / Session: Session.Submit returns a single-pass
    iter.Seq2[Message, error]; Orchestrator.Run collects it into a Result.

# Termination

The turn cap is enforced outside the policy and is checked after every
appended message. The policy runs after every message (CheckEveryMessage,
the default) or only once a full round has completed (CheckRoundBoundary).
When both fire on the same message the policy is reported as the reason.

States move Idle -> Running -> Terminated and never back. A failing turn
ends the session with ReasonError; context cancellation, a session timeout
or a consumer that stops ranging ends it with ReasonCancelled. Errors are
yielded as produced and the partial transcript stays available from
Session.Transcript.

# Observability

Each session runs under a "conversation.session" span and each turn under
"conversation.turn". Turn and session outcomes go to a MetricsRecorder and
to the zap logger ("session started", "turn completed", "session
terminated").
*/
package conversation

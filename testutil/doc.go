// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package testutil holds test helpers shared across agentwatch packages.

  - TestContext / TestContextWithTimeout / CancelledContext: contexts that
    are cancelled through t.Cleanup.
  - testutil/mocks: MockProvider, a scripted llm.Provider that records
    every request.
  - testutil/fixtures: canned llm.ChatResponse values (text, tool calls).
*/
package testutil

// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package tools holds the function catalog offered to the model and the
machinery that executes the calls it requests.

  - Registry / DefaultRegistry: name -> ToolFunc plus its JSON schema.
  - Executor: runs calls sequentially through a middleware.Chain. The
    innermost handler resolves the tool and wraps any failure in
    *types.ToolInvocationError; middleware then passes that value up as is.
  - ReActExecutor: the provider <-> tool loop. It stops at the first
    response without tool calls, at the first tool failure, or after
    MaxIterations round trips.
*/
package tools

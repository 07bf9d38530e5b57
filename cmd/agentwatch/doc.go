// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main is the agentwatch console.

# Commands

  - chat       multi-participant conversation (copywriter / art director by
    default) that ends when a participant approves or the turn cap is hit
  - assistant  single assistant with the Lights tools and automatic
    function calling
  - version    build information
  - help       usage

Both console modes read one line per prompt ("User > "), quit on "exit" or
EOF, and print every produced message as

	# <role> - <author>: '<content>'

When telemetry.metrics_exporter is prometheus, a /metrics endpoint runs
next to the console in the same errgroup.
*/
package main

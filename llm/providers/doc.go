// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package providers holds configuration and error mapping shared by the
// concrete completion adapters in its subpackages.
package providers

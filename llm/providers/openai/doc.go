// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package openai adapts OpenAI and Azure OpenAI chat completions to
llm.Provider using github.com/sashabaranov/go-openai.

With OpenAIConfig.Azure set, Model names the deployment, requests go to
{BaseURL}/openai/deployments/{Model}/chat/completions and the key is sent as
the api-key header. Otherwise the standard OpenAI endpoint (or BaseURL) is
used with bearer authentication.

Upstream failures are mapped to *types.ProviderError by HTTP status. When
the caller's context ends, its error is returned as is.
*/
package openai

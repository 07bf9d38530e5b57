// Package tokenizer counts prompt tokens so agents can keep the transcript
// they send within a model's context budget. Exact counts come from
// tiktoken; EstimatorTokenizer is an offline approximation.
package tokenizer

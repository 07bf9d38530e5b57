// Package telemetry builds the OpenTelemetry SDK pipeline for agentwatch.
// Providers are returned to the caller and never installed as OTel globals;
// when telemetry is disabled every accessor hands out noop implementations.
package telemetry

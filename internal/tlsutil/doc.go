// Package tlsutil builds the hardened HTTP client used for completion
// provider calls (TLS 1.2+, AEAD cipher suites only).
package tlsutil

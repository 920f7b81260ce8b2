// Package codec provides JSON helpers for native messaging payloads.
//
// The transport itself moves opaque bytes. These helpers are for callers
// whose payloads are JSON documents and who want inbound messages checked
// against a JSON Schema before use.
package codec

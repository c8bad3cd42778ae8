// Package api defines the wire types shared by every layer of the missive
// message service.
//
// It holds the persisted entities (Project, Message), the request and
// response bodies accepted by the HTTP routes, and the structured error
// type that every domain component returns.
//
// Core types:
//   - [Project]: a named container owned by exactly one identity
//   - [Message]: password-gated content belonging to a project
//   - [MessageSummary]: message metadata that never carries content
//   - [APIError]: structured error with type, param, and message
//
// The package performs no I/O. Content is kept as raw JSON so that the
// editor document format stays opaque to the service.
package api

// Package transport defines the service interfaces and middleware chain for
// the missive HTTP layer.
//
// The transport layer bridges external clients and the domain services. It
// decodes incoming requests into the types defined in pkg/api, dispatches
// them to a ProjectService or MessageService, and serializes results or
// structured errors back to the client.
//
// # Service Interfaces
//
//   - ProjectService manages projects and answers ownership questions.
//   - MessageService is the message access controller: it enforces
//     password gating for reads, rotations and attachments.
//
// # Middleware
//
// Middleware are plain func(http.Handler) http.Handler values composed with
// Chain. Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), structured logging via log/slog, CORS, and security
// headers. Authentication and ownership checks live in pkg/auth and are
// composed per route by the HTTP adapter.
package transport

// Package message implements the message access controller: administrative
// message management for project owners, and password-gated reading,
// password rotation and attachment access for anyone holding a message id.
//
// Domain failures are returned as *api.APIError. Wrong and missing
// passwords are both reported as unauthenticated; the transport layer
// never learns more than that.
package message

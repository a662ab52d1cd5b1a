// Package auth provides JWT verification for the HTTP control surface.
//
// Tokens are HS256-signed with the configured jwt_secret and identify the
// caller through the standard sub claim. Middleware extracts the bearer
// token, verifies it, and places the subject in the request context; a
// nil verifier disables authentication entirely.
package auth

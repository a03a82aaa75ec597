// Package identity implements the identity provider: it owns the bearer
// credential, orchestrates login/signup/logout against the auth service, and
// notifies subscribers on every identity change.
//
// The Credential is a separate, shareable token holder so the API client can
// read the bearer token without depending on the Provider (which itself
// depends on the API client for auth calls).
package identity

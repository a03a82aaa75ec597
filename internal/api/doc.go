// Package api implements the remote service contract over JSON/HTTPS.
//
// One Client implements both domain.RemoteService and domain.AuthService.
// The bearer credential is pulled from a domain.TokenSource before each
// authenticated request; a missing credential fails locally as
// unauthenticated without touching the network. Non-success responses are
// classified into the structured error taxonomy, surfacing the service's
// "detail" string verbatim when present.
package api

// Package domain defines the chat model types and the interfaces the session
// store depends on.
//
// The remote service and the identity provider are external collaborators;
// they appear here only as interfaces so the store can be tested against
// function-field mocks. Concrete implementations live in internal/api and
// internal/identity.
package domain

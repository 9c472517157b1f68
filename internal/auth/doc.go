// Package auth produces the authorization header printers send to the build server.
//
// Two strategies exist: a static shared-secret header, and a bearer token
// signed with a server-known key that embeds the shared secret as a claim.
// FromConfig picks one from the agent settings.
package auth

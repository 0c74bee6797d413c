// Package opencode implements the HTTP side of the bridge: the two-call
// session-create plus message-post exchange with retry and backoff, and
// the streaming translator that maps the server's event vocabulary into
// the normalized event sequence the extension consumes.
package opencode

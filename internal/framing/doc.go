// Package framing implements the length-prefixed JSON message transport
// used by browser native messaging hosts.
//
// Each frame is a 4-byte unsigned little-endian length followed by a UTF-8
// JSON body of exactly that length. Both directions of the stdio channel
// use the same framing.
package framing

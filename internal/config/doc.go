// Package config holds the resolved configuration for the bridge: server
// address, the opencode binary location, timeouts, and the retry budget.
//
// Values come from three layers, lowest precedence first: built-in
// defaults, OPENCODE_BRIDGE_* environment variables, and explicit options
// passed by the embedding application.
package config

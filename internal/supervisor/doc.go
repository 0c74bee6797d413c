// Package supervisor manages the lifecycle of the external opencode
// server process: locating the binary, spawning it in serve mode,
// health-checking it over HTTP, and stopping it on shutdown.
//
// At most one process handle exists at a time. Concurrent EnsureRunning
// calls collapse into one check-and-start sequence, so two requests racing
// to start the server produce exactly one child process.
package supervisor

// ABOUTME: Package documentation for the supervisor routing loop

// Package supervisor implements the sequential supervisor/worker routing loop.
//
// A Router asks a decision service which worker runs next. A Coordinator
// alternates between the Router and Invoke on the chosen worker until the Router
// returns Terminate. Workers never hand off to each other; every hand-off
// passes back through the Coordinator. Graph assembles the pieces and
// validates the wiring before a Coordinator can be used.
package supervisor

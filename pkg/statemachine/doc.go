// Package statemachine implements a small thread-safe finite state machine
// with guarded transitions. It backs the refresh flight lifecycle
// (idle → refreshing → settled), replacing scattered boolean flags with one
// centrally guarded transition table.
package statemachine

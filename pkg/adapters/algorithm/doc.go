// Package algorithm provides algorithm implementations the host can run.
//
// The factory selects an implementation by kind.
// Currently supports:
//   - passive: accepts sessions and logs their lifecycle
package algorithm

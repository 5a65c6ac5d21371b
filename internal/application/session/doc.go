// Package session implements ExpertSession, the unit binding the hosted
// algorithm to one data provider and an optional order execution provider.
//
// A session moves Created -> Initialized -> TornDown. A failed Initialize
// leaves it in Created; TornDown is terminal.
package session

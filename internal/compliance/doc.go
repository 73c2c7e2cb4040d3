// Package compliance evaluates an observation.Snapshot against a profile.
//
// Every function here is pure: the same snapshot and profile always yield
// the same report. Compliance problems are returned as messages, never as
// Go errors.
package compliance

// Package stage defines the Stage contract: one named unit of work that
// turns an input bundle into an Outcome.
//
// Stages never let a fault escape. Func and Run convert returned errors and
// recovered panics into failures classified as ErrExecutionFault, while
// RequireString gives stages the fast-fail ErrInvalidInput path for missing
// keys. A stage may also declare a Schema so that chain builders can reject
// incompatible neighbours before anything runs.
package stage

// Package chain assembles stages into a linear chain and runs it.
//
// A Builder collects stages with BeginWith and Then, attaches explicit input
// bundles with WithInput and checks schema contracts in Build. The Executor
// runs a built chain once, stage by stage, and stops at the first failure.
// That failure is wrapped in a StageError naming the stage and the stages it
// skipped, and is marked ErrChainAborted.
package chain

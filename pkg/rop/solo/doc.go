// Package solo contains single-value, synchronous ROP primitives that operate
// on Result[T]. Stages and the chain executor are built from them.
//
// Highlights:
// - Switch: move from Result[In] to Result[Out]
// - Map: transform successful values
// - Try: call a function (Out, error) and convert error to failure
// - Tee/DoubleTee: side-effect helpers
// - Finally: reduce to a concrete value via success/error handlers
package solo

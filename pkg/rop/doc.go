// Package rop defines Result[T], the two-track value (success with a value or
// failure with a cause) that every stage and chain in this module returns.
//
// Subpackage solo holds the synchronous primitives that move values along
// the success track and leave failures untouched.
package rop

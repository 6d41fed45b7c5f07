// Package bundle provides Bundle, the immutable key/value payload passed into
// and out of stages.
//
// Values are scalars: string, int64, float64, bool or []byte. Bundles are
// compared and serialized by value; two bundles built from the same entries
// are Equal and survive a JSON round trip unchanged.
package bundle

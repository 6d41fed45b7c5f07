// Package imaging provides the image stages of the blur chain.
//
// Cleanup clears stale scratch files, Blur writes a Gaussian-blurred copy of
// the input image into the run's scratch directory and Save copies the
// result into the output directory. Images are addressed by file:// or
// res:// locators, which a Resolver maps to paths.
package imaging

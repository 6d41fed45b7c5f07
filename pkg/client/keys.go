package client

// Bundle keys of the blur chain. Stages built for the client read and write
// these; nothing in bundle, stage or chain depends on them.
const (
	// KeyImageURI holds an image locator (file:// or res://).
	KeyImageURI = "IMAGE_URI"
	// KeyBlurLevel holds the requested blur level as an int.
	KeyBlurLevel = "BLUR_LEVEL"
	// KeyRunID names the per-chain scratch area under the work directory.
	KeyRunID = "RUN_ID"
)

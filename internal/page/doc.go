// Package page activates a version of a page and builds it.
//
// A build stages a transcoded copy of the active version, runs the transform
// pipeline over it and publishes the result into a directory named after the
// build timestamp:
//
//	Idle -> Staging -> Executing -> Publishing -> Done
//	                 \-----------\-------------\-> Failed
//
// A Page is not safe for concurrent builds; a second Build while one is
// running fails with ErrBuildInProgress.
package page

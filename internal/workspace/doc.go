// Package workspace manages the staging directories of a page build.
//
// Every build works in two ephemeral directories under the page root:
// page_src_temp receives the transcoded copy of the version source and
// page_build_temp collects transform output. Both are recreated at the start
// of a build and removed after a successful publish.
package workspace

// Package mediatypes defines the set of video containers accepted for
// swing uploads and their MIME type mappings.
package mediatypes

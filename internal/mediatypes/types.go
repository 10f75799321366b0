package mediatypes

import "strings"

// Containers the browser MediaRecorder / file picker can hand us.
// Anything else is rejected at upload time; the transcoder normalises
// all of these to mp4 before the object store sees them.
var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

var videoMimeTypes = map[string]string{
	"video/mp4":       ".mp4",
	"video/x-m4v":     ".m4v",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
}

// IsAcceptedExtension reports whether ext (with leading dot, any case)
// is an upload container we accept.
func IsAcceptedExtension(ext string) bool {
	_, ok := videoExtensions[strings.ToLower(ext)]
	return ok
}

// IsAcceptedMimeType reports whether mimeType is an upload container we accept.
func IsAcceptedMimeType(mimeType string) bool {
	_, ok := videoMimeTypes[strings.ToLower(mimeType)]
	return ok
}

// MimeTypeForExtension returns the MIME type for an accepted extension,
// or an empty string if the extension is not accepted.
func MimeTypeForExtension(ext string) string {
	return videoExtensions[strings.ToLower(ext)]
}

// ExtensionForMimeType returns the canonical file extension for an accepted
// MIME type, or an empty string if the type is not accepted.
func ExtensionForMimeType(mimeType string) string {
	return videoMimeTypes[strings.ToLower(mimeType)]
}

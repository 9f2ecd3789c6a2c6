package domain

import "strings"

// Floorplan is an uploaded apartment layout image held as a data URI.
type Floorplan struct {
	Name     string
	MIMEType string
	Size     int64
	DataURI  string
}

// IsImageType reports whether a declared MIME type is an image.
func IsImageType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

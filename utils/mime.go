package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// InferFileType maps a file name to a supported upload type ("csv" or "xml"), or "" when unsupported
func InferFileType(fileName string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), ".")) {
	case "csv":
		return "csv"
	case "xml":
		return "xml"
	}
	return ""
}

// DownloadContentType picks the MIME type for a download
func DownloadContentType(fileType, fileName string) string {
	switch strings.ToLower(fileType) {
	case "csv":
		return "text/csv; charset=utf-8"
	case "xml":
		return "application/xml; charset=utf-8"
	}
	if fileName != "" {
		if mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); strings.HasPrefix(mimeType, "text/") {
			return mimeType
		}
	}
	return "text/plain; charset=utf-8"
}

// SanitizeFileName strips path components and quotes so the name is safe in a Content-Disposition header
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

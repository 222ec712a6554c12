package utils

import (
	"strings"
)

// RemoveEmpty removes empty strings from a slice
func RemoveEmpty(slice []string) []string {
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if strings.TrimSpace(s) != "" {
			result = append(result, s)
		}
	}
	return result
}

// SplitAndTrim splits a string and trims whitespace from each part
func SplitAndTrim(s, separator string) []string {
	parts := strings.Split(s, separator)
	result := make([]string, len(parts))
	for i, part := range parts {
		result[i] = strings.TrimSpace(part)
	}
	return result
}

// NormalizeExtensions lowercases extensions, adds a leading dot and drops
// blanks. Entries may themselves be comma separated.
func NormalizeExtensions(extensions []string) []string {
	var result []string
	for _, entry := range extensions {
		for _, ext := range RemoveEmpty(SplitAndTrim(entry, ",")) {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			result = append(result, ext)
		}
	}
	return result
}

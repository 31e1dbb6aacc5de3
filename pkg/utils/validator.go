package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// ValidateArchiveName validates a download name for a ZIP archive
func ValidateArchiveName(name string) error {
	if name == "" {
		return fmt.Errorf("archive name is required")
	}
	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		return fmt.Errorf("archive name must end with .zip: %s", name)
	}
	if strings.ContainsAny(name, `/\`) || controlChars.MatchString(name) {
		return fmt.Errorf("archive name must be a plain file name: %q", name)
	}
	return nil
}

// ValidatePort validates a TCP port number
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port out of range: %d", port)
	}
	return nil
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

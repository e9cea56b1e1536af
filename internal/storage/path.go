package storage

import (
	"fmt"
	"path"
	"regexp"
)

var exportIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildExportPath returns the object key for an exported result.
func BuildExportPath(exportID string) (string, error) {
	if !exportIDPattern.MatchString(exportID) {
		return "", fmt.Errorf("invalid export id: %q", exportID)
	}
	return path.Join("results", exportID+".parquet"), nil
}

package cmd

import (
	"path"
	"path/filepath"
	"strings"
)

// Path template placeholders
const (
	placeholderEntity = "{entity}"
	placeholderExt    = "{ext}"

	defaultPathTemplate = "data/musicbrainz-db-{entity}-export{ext}"
)

// PathTemplate provides functionality to generate output paths from templates
type PathTemplate struct {
	template string
}

// NewPathTemplate creates a new PathTemplate instance
func NewPathTemplate(template string) *PathTemplate {
	return &PathTemplate{template: template}
}

// Generate replaces placeholders in the template with actual values.
// Supports: {entity}, {ext}. A template without {ext} gets the extensions appended.
func (pt *PathTemplate) Generate(entity string, formatExt string, compressionExt string) string {
	ext := formatExt + compressionExt

	result := strings.ReplaceAll(pt.template, placeholderEntity, entity)
	if strings.Contains(result, placeholderExt) {
		result = strings.ReplaceAll(result, placeholderExt, ext)
	} else {
		result += ext
	}

	return filepath.Clean(result)
}

// ObjectKey returns the S3 key for a local output file
func ObjectKey(prefix string, localPath string) string {
	base := filepath.Base(localPath)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return base
	}
	return path.Join(prefix, base)
}

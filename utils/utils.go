package utils

import (
	"strings"
)

// JoinURLPath 拼接URL路径片段，去掉空片段和首尾的"/"
func JoinURLPath(parts ...string) string {
	var nonEmptyParts []string
	for _, part := range parts {
		if part != "" {
			part = strings.Trim(part, "/")
			if part != "" {
				nonEmptyParts = append(nonEmptyParts, part)
			}
		}
	}

	return strings.Join(nonEmptyParts, "/")
}

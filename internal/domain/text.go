package domain

import "strings"

// NormalizeAnswer trims, collapses internal whitespace and case-folds raw input.
func NormalizeAnswer(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// JoinNames renders a comma-separated winner list, skipping blanks.
func JoinNames(names []string) string {
	kept := make([]string, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) != "" {
			kept = append(kept, name)
		}
	}
	return strings.Join(kept, ", ")
}

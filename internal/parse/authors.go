package parse

import (
	"strings"

	"github.com/dmfell/scholarscrape/internal/scholar"
)

// splitAuthors breaks a rendered author line into individual names.
// Scholar mixes delimiters across locales: semicolons, commas, and the
// word "and". Comma splitting pairs adjacent parts back together when
// the second is a lone word, so "Smith, J" survives as one author
// instead of two.
func splitAuthors(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" || line == scholar.Placeholder {
		return []string{}
	}

	var parts []string
	switch {
	case strings.Contains(line, ";"):
		parts = strings.Split(line, ";")
	case strings.Contains(line, ","):
		parts = pairCommaParts(strings.Split(line, ","))
	case strings.Contains(line, " and "):
		parts = strings.Split(line, " and ")
	default:
		parts = []string{line}
	}

	authors := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

// pairCommaParts rejoins "Last, First" pairs split apart by the comma
// pass. A part followed by a single-word part is treated as a surname
// with its initial or given name trailing.
func pairCommaParts(raw []string) []string {
	parts := make([]string, len(raw))
	for i, part := range raw {
		parts[i] = strings.TrimSpace(part)
	}

	out := make([]string, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		if i+1 < len(parts) && len(strings.Fields(parts[i+1])) == 1 {
			out = append(out, parts[i]+", "+parts[i+1])
			i++
			continue
		}
		out = append(out, parts[i])
	}
	return out
}

package store

import (
	"strings"
)

// SplitStatements splits a DDL script on semicolons, ignoring semicolons
// inside single-quoted literals and skipping "--" line comments.
func SplitStatements(script string) []string {
	var statements []string
	var current strings.Builder
	inString := false

	for i := 0; i < len(script); i++ {
		ch := script[i]

		if !inString && ch == '-' && i+1 < len(script) && script[i+1] == '-' {
			for i < len(script) && script[i] != '\n' {
				i++
			}
			current.WriteByte('\n')
			continue
		}

		if ch == '\'' {
			// '' is an escaped quote inside a literal
			if inString && i+1 < len(script) && script[i+1] == '\'' {
				current.WriteByte(ch)
				current.WriteByte(script[i+1])
				i++
				continue
			}
			inString = !inString
		}

		if ch == ';' && !inString {
			if s := strings.TrimSpace(current.String()); s != "" {
				statements = append(statements, s)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		statements = append(statements, s)
	}

	return statements
}

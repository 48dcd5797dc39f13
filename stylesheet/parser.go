package stylesheet

import (
	"strings"
)

// Parse extracts style rules from CSS text. Rules nested in grouping at-rules
// such as @media or @supports are flattened into the result; statement
// at-rules (@import, @charset) are ignored.
func Parse(css string) []Rule {
	return parseRules(stripComments(css))
}

func parseRules(content string) []Rule {
	var rules []Rule
	pos := 0

	for pos < len(content) {
		open := strings.IndexByte(content[pos:], '{')
		if open == -1 {
			break
		}
		open += pos

		prelude := content[pos:open]
		if i := strings.LastIndexAny(prelude, ";}"); i != -1 {
			prelude = prelude[i+1:]
		}
		prelude = strings.TrimSpace(prelude)

		end := findBlockEnd(content, open)
		bodyEnd := end
		if bodyEnd > open+1 && content[bodyEnd-1] == '}' {
			bodyEnd--
		}
		body := content[open+1 : bodyEnd]
		pos = end

		switch {
		case strings.HasPrefix(prelude, "@"):
			if strings.Contains(body, "{") {
				rules = append(rules, parseRules(body)...)
			}
		case prelude == "":
			continue
		default:
			rules = append(rules, Rule{
				Selector:     prelude,
				Declarations: ParseDeclarations(body),
			})
		}
	}

	return rules
}

// ParseDeclarations parses the inside of a declaration block.
func ParseDeclarations(body string) []Declaration {
	var decls []Declaration
	for _, part := range splitTopLevel(body, ';') {
		colon := strings.IndexByte(part, ':')
		if colon <= 0 {
			continue
		}
		prop := strings.TrimSpace(part[:colon])
		value := strings.TrimSpace(part[colon+1:])
		if prop == "" {
			continue
		}
		// custom property names are case-sensitive
		if !strings.HasPrefix(prop, "--") {
			prop = strings.ToLower(prop)
		}

		important := false
		if i := strings.LastIndex(strings.ToLower(value), "!important"); i != -1 && strings.TrimSpace(value[i+len("!important"):]) == "" {
			important = true
			value = strings.TrimSpace(value[:i])
		}

		decls = append(decls, Declaration{Property: prop, Value: value, Important: important})
	}
	return decls
}

// findBlockEnd returns the index just past the brace that closes the block
// opened at or after startPos.
func findBlockEnd(content string, startPos int) int {
	if startPos >= len(content) {
		return len(content)
	}

	openBrace := strings.IndexByte(content[startPos:], '{')
	if openBrace == -1 {
		return len(content)
	}
	openBrace += startPos

	depth := 1
	pos := openBrace + 1
	var quote byte
	for pos < len(content) && depth > 0 {
		c := content[pos]
		switch {
		case quote != 0:
			if c == '\\' {
				pos++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			depth--
		}
		pos++
	}

	return min(pos, len(content))
}

func stripComments(css string) string {
	if !strings.Contains(css, "/*") {
		return css
	}

	var b strings.Builder
	b.Grow(len(css))
	pos := 0
	for pos < len(css) {
		start := strings.Index(css[pos:], "/*")
		if start == -1 {
			b.WriteString(css[pos:])
			break
		}
		start += pos
		b.WriteString(css[pos:start])

		end := strings.Index(css[start+2:], "*/")
		if end == -1 {
			break
		}
		pos = start + 2 + end + 2
	}
	return b.String()
}

// splitTopLevel splits s on sep, ignoring separators inside parentheses,
// brackets or quotes. Empty parts are dropped.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				if p := strings.TrimSpace(s[start:i]); p != "" {
					parts = append(parts, p)
				}
				start = i + 1
			}
		}
	}
	if start <= len(s) {
		if p := strings.TrimSpace(s[start:]); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

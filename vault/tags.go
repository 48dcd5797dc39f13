// Package vault reads tag metadata from a directory of markdown notes and
// reports when notes change.
package vault

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var inlineTagPattern = regexp.MustCompile(`(?:^|[\s(\[,])#([\p{L}\p{N}_/\-]+)`)

type frontmatter struct {
	Tags yaml.Node `yaml:"tags"`
	Tag  yaml.Node `yaml:"tag"`
}

// ExtractTags returns the tags of a markdown document: frontmatter tags first,
// then inline tags in body order. Duplicates are dropped and tags carry no '#'.
func ExtractTags(content []byte) ([]string, error) {
	meta, body := splitFrontmatter(content)

	var tags []string
	seen := make(map[string]struct{})
	add := func(tag string) {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	if meta != nil {
		var fm frontmatter
		if err := yaml.Unmarshal(meta, &fm); err != nil {
			return nil, fmt.Errorf("parse frontmatter: %w", err)
		}
		for _, tag := range nodeStrings(&fm.Tags) {
			add(tag)
		}
		for _, tag := range nodeStrings(&fm.Tag) {
			add(tag)
		}
	}

	for _, tag := range inlineTags(body) {
		add(tag)
	}
	return tags, nil
}

// splitFrontmatter returns the YAML between leading "---" fences (nil if
// there is none) and the remaining body.
func splitFrontmatter(content []byte) ([]byte, []byte) {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	if !bytes.HasPrefix(content, []byte("---\n")) && !bytes.HasPrefix(content, []byte("---\r\n")) {
		return nil, content
	}

	rest := content[bytes.IndexByte(content, '\n')+1:]
	offset := 0
	for offset <= len(rest) {
		nl := bytes.IndexByte(rest[offset:], '\n')
		var line []byte
		if nl == -1 {
			line = rest[offset:]
		} else {
			line = rest[offset : offset+nl]
		}
		if string(bytes.TrimRight(line, "\r ")) == "---" {
			if nl == -1 {
				return rest[:offset], nil
			}
			return rest[:offset], rest[offset+nl+1:]
		}
		if nl == -1 {
			break
		}
		offset += nl + 1
	}
	return nil, content
}

// nodeStrings accepts a YAML list or a comma/space separated string.
func nodeStrings(n *yaml.Node) []string {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		return strings.FieldsFunc(n.Value, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind == yaml.ScalarNode {
				out = append(out, item.Value)
			}
		}
		return out
	}
	return nil
}

func inlineTags(body []byte) []string {
	var tags []string
	inFence := false

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		for _, m := range inlineTagPattern.FindAllStringSubmatch(stripInlineCode(line), -1) {
			if isNumeric(m[1]) {
				continue
			}
			tags = append(tags, m[1])
		}
	}
	return tags
}

func stripInlineCode(line string) string {
	if !strings.Contains(line, "`") {
		return line
	}
	var b strings.Builder
	inCode := false
	for _, r := range line {
		if r == '`' {
			inCode = !inCode
			continue
		}
		if !inCode {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

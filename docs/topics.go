// Package docs embeds the user manual of folio. Each markdown file is a
// topic, readme.md is the index.
package docs

import (
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strings"
)

//go:embed *.md
var manual embed.FS

const index = "readme"

// Topic returns the content of a documentation topic. The empty topic is the
// index, and "*" is the whole manual.
func Topic(name string) (string, error) {
	switch name {
	case "":
		name = index
	case "*":
		return All()
	}
	content, err := manual.ReadFile(name + ".md")
	if err != nil {
		return "", fmt.Errorf("topic %q not found, see 'folio topic' for the list", name)
	}
	return string(content), nil
}

// Topics returns the names of the topics, index excluded, sorted.
func Topics() []string {
	entries, err := fs.ReadDir(manual, ".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".md")
		if ok && !e.IsDir() && name != index {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// All returns every topic, one after the other.
func All() (string, error) {
	var b strings.Builder
	for _, name := range Topics() {
		content, err := Topic(name)
		if err != nil {
			return "", err
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

package scanner

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreFileName is read from the scan root when present. It uses
// gitignore syntax: comments, "!" negation, trailing "/" for directories
// and a leading "/" to anchor at the root.
const IgnoreFileName = ".tutorignore"

// IgnoreRules holds compiled ignore-file rules. The last matching rule wins.
type IgnoreRules struct {
	rules []ignoreRule
}

type ignoreRule struct {
	regex    *regexp.Regexp
	negation bool
	dirOnly  bool
	anchored bool
}

// ParseIgnore compiles ignore-file content. Blank lines and comments are
// dropped.
func ParseIgnore(content string) *IgnoreRules {
	r := &IgnoreRules{}
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		r.Add(sc.Text())
	}
	return r
}

// LoadIgnoreFile reads IgnoreFileName from root. A missing file yields
// empty rules.
func LoadIgnoreFile(root string) (*IgnoreRules, error) {
	data, err := os.ReadFile(filepath.Join(root, IgnoreFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return &IgnoreRules{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", IgnoreFileName, err)
	}
	return ParseIgnore(string(data)), nil
}

// Add compiles a single line.
func (r *IgnoreRules) Add(line string) {
	escapedSpace := strings.HasSuffix(line, `\ `)
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	var rule ignoreRule
	switch {
	case strings.HasPrefix(line, `\#`), strings.HasPrefix(line, `\!`):
		line = line[1:]
	case strings.HasPrefix(line, "!"):
		rule.negation = true
		line = line[1:]
	}
	if escapedSpace && strings.HasSuffix(line, `\`) {
		line = strings.TrimSuffix(line, `\`) + " "
	}
	if trimmed, ok := strings.CutSuffix(line, "/"); ok {
		rule.dirOnly = true
		line = trimmed
	}
	if trimmed, ok := strings.CutPrefix(line, "/"); ok {
		rule.anchored = true
		line = trimmed
	}
	// "a/b" is relative to the root, "**/b" and "*/b" are not
	if strings.Contains(line, "/") && !strings.HasPrefix(line, "*") {
		rule.anchored = true
	}
	if line == "" {
		return
	}

	re, err := regexp.Compile("^" + globToRegex(line) + "$")
	if err != nil {
		return
	}
	rule.regex = re
	r.rules = append(r.rules, rule)
}

// Len returns the number of compiled rules.
func (r *IgnoreRules) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}

// Match reports whether a slash-separated root-relative path is ignored.
func (r *IgnoreRules) Match(relPath string, isDir bool) bool {
	if r == nil {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	ignored := false
	for _, rule := range r.rules {
		if rule.matches(relPath, isDir) {
			ignored = !rule.negation
		}
	}
	return ignored
}

func (rule ignoreRule) matches(relPath string, isDir bool) bool {
	parts := strings.Split(relPath, "/")
	last := len(parts) - 1

	if rule.anchored {
		// The rule names the path itself or one of its parent directories.
		for i := last; i >= 0; i-- {
			if !rule.regex.MatchString(strings.Join(parts[:i+1], "/")) {
				continue
			}
			if i == last && rule.dirOnly {
				return isDir
			}
			return true
		}
		return false
	}

	for i, part := range parts {
		if !rule.regex.MatchString(part) {
			continue
		}
		if i == last && rule.dirOnly {
			return isDir
		}
		return true
	}
	return rule.regex.MatchString(relPath)
}

// globToRegex translates gitignore glob syntax into a regular expression.
func globToRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 2
					continue
				}
				if i == 0 || pattern[i-1] == '/' {
					b.WriteString(".*")
					i++
					continue
				}
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		case '\\':
			if i+1 < len(pattern) {
				i++
				b.WriteString(regexp.QuoteMeta(string(pattern[i])))
			} else {
				b.WriteString(`\\`)
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}

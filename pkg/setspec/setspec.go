// Package setspec parses the declarative backup-set specification.
//
// The grammar is deliberately tiny: three directives with brace-delimited,
// whitespace-separated argument lists, plus '#' line comments.
//
//	include { <path> <path> ... }
//	exclude { <path> <path> ... }
//	exclude-match { <glob> <glob> ... }
//
// Repeated include/exclude blocks accumulate; a repeated exclude-match block
// replaces the prior pattern list. The parser recognizes exactly these three
// directives and rejects everything else, so a spec file has no way to reach
// the filesystem, processes, or network beyond naming paths to back up.
package setspec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrInvalidSpec is wrapped by every parse failure.
var ErrInvalidSpec = errors.New("invalid backup-set spec")

// ParseError describes a grammar violation at a specific line.
type ParseError struct {
	Name string // spec name, usually the file path
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Name, e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidSpec
}

// Directives receives the parsed spec. The parser only ever calls these three
// operations; *backupset.Resolver satisfies the interface.
type Directives interface {
	AddInclude(paths ...string)
	AddExclude(paths ...string)
	SetExcludeGlobs(patterns []string)
}

type token struct {
	text string
	line int
}

// EvaluateFile parses the spec file at path and applies its directives.
// A file that cannot be opened is as fatal as one that cannot be parsed.
func EvaluateFile(path string, d Directives) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open backup-set spec: %w", err)
	}
	defer f.Close()
	return Evaluate(f, path, d)
}

// Evaluate parses a spec from r and applies its directives to d. Directives
// are applied block by block as they are parsed; whether a spec that fails
// mid-file has applied its earlier blocks is implementation-defined, and the
// caller must treat any error as fatal to the run.
func Evaluate(r io.Reader, name string, d Directives) error {
	tokens, err := tokenize(r, name)
	if err != nil {
		return err
	}

	i := 0
	next := func() (token, bool) {
		if i >= len(tokens) {
			return token{}, false
		}
		t := tokens[i]
		i++
		return t, true
	}

	for {
		directive, ok := next()
		if !ok {
			return nil
		}

		switch directive.text {
		case "include", "exclude", "exclude-match":
		default:
			return &ParseError{Name: name, Line: directive.line,
				Msg: fmt.Sprintf("unknown directive %q (expected include, exclude, or exclude-match)", directive.text)}
		}

		open, ok := next()
		if !ok || open.text != "{" {
			return &ParseError{Name: name, Line: directive.line,
				Msg: fmt.Sprintf("directive %q must be followed by a brace block", directive.text)}
		}

		var args []string
		for {
			t, ok := next()
			if !ok {
				return &ParseError{Name: name, Line: open.line,
					Msg: fmt.Sprintf("unclosed brace block for directive %q", directive.text)}
			}
			if t.text == "}" {
				break
			}
			if t.text == "{" {
				return &ParseError{Name: name, Line: t.line, Msg: "nested brace blocks are not allowed"}
			}
			args = append(args, t.text)
		}

		switch directive.text {
		case "include":
			d.AddInclude(args...)
		case "exclude":
			d.AddExclude(args...)
		case "exclude-match":
			d.SetExcludeGlobs(args)
		}
	}
}

// tokenize splits the input into whitespace-separated words, detaching braces
// into their own tokens and dropping '#' comments.
func tokenize(r io.Reader, name string) ([]token, error) {
	var tokens []token
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if idx := strings.IndexByte(text, '#'); idx >= 0 {
			text = text[:idx]
		}
		for _, field := range strings.Fields(text) {
			for _, word := range splitBraces(field) {
				tokens = append(tokens, token{text: word, line: line})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read backup-set spec %s: %w", name, err)
	}
	return tokens, nil
}

// splitBraces cuts leading/trailing braces off a word so that "include{" and
// "}" glued to arguments still parse.
func splitBraces(word string) []string {
	var out []string
	for len(word) > 0 && (word[0] == '{' || word[0] == '}') {
		out = append(out, string(word[0]))
		word = word[1:]
	}
	var trailing []string
	for len(word) > 0 && (word[len(word)-1] == '{' || word[len(word)-1] == '}') {
		trailing = append([]string{string(word[len(word)-1])}, trailing...)
		word = word[:len(word)-1]
	}
	if word != "" {
		out = append(out, word)
	}
	return append(out, trailing...)
}

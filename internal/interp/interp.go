// Package interp implements the brace substitution language used in
// environment configuration values: {toxinidir}, {envdir}, {[section]key},
// {env:NAME:default}, {posargs}, and friends.
package interp

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"
)

// maxDepth bounds recursive substitution so self-referencing values are
// reported instead of looping forever.
const maxDepth = 16

// posargsMarker stands in for {posargs} during command expansion so the
// positional arguments can be spliced in after shell splitting, without
// re-quoting them.
const posargsMarker = "\x00posargs\x00"

// Context carries everything a substitution can reference. Lookup functions
// may be nil, in which case the corresponding placeholder forms fail.
type Context struct {
	ToxIniDir string
	WorkDir   string
	EnvName   string
	EnvDir    string
	EnvBinDir string
	EnvPython string

	// Posargs are the CLI positional arguments spliced in for {posargs}.
	Posargs []string

	// LookupVar resolves {[section]key} references.
	LookupVar func(section, key string) (string, bool)

	// LookupEnv resolves {env:NAME} references. Defaults to os.LookupEnv.
	LookupEnv func(name string) (string, bool)
}

// Expand resolves every placeholder in s. {posargs} expands to the
// space-joined positional arguments.
func (c *Context) Expand(s string) (string, error) {
	return c.expand(s, 0, false)
}

// ExpandCommand resolves placeholders in a raw command line and splits it
// shell-style into argv. {posargs} splices the positional arguments in as
// separate words, preserving any quoting they carried on the real command
// line.
func (c *Context) ExpandCommand(line string) ([]string, error) {
	expanded, err := c.expand(line, 0, true)
	if err != nil {
		return nil, err
	}
	words, err := shlex.Split(expanded)
	if err != nil {
		return nil, fmt.Errorf("splitting command %q: %w", line, err)
	}

	var argv []string
	for _, w := range words {
		switch {
		case w == posargsMarker:
			argv = append(argv, c.Posargs...)
		case strings.Contains(w, posargsMarker):
			argv = append(argv, strings.ReplaceAll(w, posargsMarker, strings.Join(c.Posargs, " ")))
		default:
			argv = append(argv, w)
		}
	}
	return argv, nil
}

func (c *Context) expand(s string, depth int, markPosargs bool) (string, error) {
	if depth > maxDepth {
		return "", fmt.Errorf("substitution nested too deeply (cycle?) in %q", s)
	}

	var out strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\\' && i+1 < len(s) && (s[i+1] == '{' || s[i+1] == '}') {
			out.WriteByte(s[i+1])
			i++
			continue
		}
		if ch != '{' {
			out.WriteByte(ch)
			continue
		}

		end, err := matchBrace(s, i)
		if err != nil {
			return "", err
		}
		token := s[i+1 : end]
		i = end

		resolved, literal, err := c.resolve(token, markPosargs)
		if err != nil {
			return "", err
		}
		if literal {
			// Path separators and the posargs marker must not be re-scanned.
			out.WriteString(resolved)
			continue
		}
		nested, err := c.expand(resolved, depth+1, markPosargs)
		if err != nil {
			return "", err
		}
		out.WriteString(nested)
	}
	return out.String(), nil
}

// matchBrace returns the index of the '}' closing the '{' at open,
// honouring nesting and backslash escapes.
func matchBrace(s string, open int) (int, error) {
	level := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced braces in %q", s)
}

// resolve maps a placeholder token to its raw replacement. The literal
// return reports that the replacement must be taken verbatim rather than
// re-expanded.
func (c *Context) resolve(token string, markPosargs bool) (value string, literal bool, err error) {
	switch {
	case token == ":":
		return string(os.PathListSeparator), true, nil
	case token == "/":
		return string(os.PathSeparator), true, nil

	case strings.HasPrefix(token, "["):
		close := strings.IndexByte(token, ']')
		if close < 0 {
			return "", false, fmt.Errorf("malformed section reference {%s}", token)
		}
		section, key := token[1:close], token[close+1:]
		if c.LookupVar == nil {
			return "", false, fmt.Errorf("section reference {%s} not supported here", token)
		}
		v, ok := c.LookupVar(section, key)
		if !ok {
			return "", false, fmt.Errorf("undefined reference {[%s]%s}", section, key)
		}
		return v, false, nil

	case strings.HasPrefix(token, "env:"):
		rest := token[len("env:"):]
		name, def, hasDef := strings.Cut(rest, ":")
		if name == "" {
			return "", false, fmt.Errorf("malformed environment reference {%s}", token)
		}
		lookup := c.LookupEnv
		if lookup == nil {
			lookup = os.LookupEnv
		}
		if v, ok := lookup(name); ok {
			return v, true, nil
		}
		if hasDef {
			return def, false, nil
		}
		return "", false, fmt.Errorf("environment variable %s is not set and {%s} has no default", name, token)

	case token == "posargs" || strings.HasPrefix(token, "posargs:"):
		if len(c.Posargs) > 0 {
			if markPosargs {
				return posargsMarker, true, nil
			}
			return strings.Join(c.Posargs, " "), true, nil
		}
		if _, def, ok := strings.Cut(token, ":"); ok {
			return def, false, nil
		}
		return "", true, nil

	case token == "toxinidir":
		return c.ToxIniDir, true, nil
	case token == "workdir" || token == "toxworkdir":
		return c.WorkDir, true, nil
	case token == "envname":
		return c.EnvName, true, nil
	case token == "envdir":
		return c.EnvDir, true, nil
	case token == "envbindir":
		return c.EnvBinDir, true, nil
	case token == "envpython":
		return c.EnvPython, true, nil
	}

	return "", false, fmt.Errorf("unknown substitution {%s}", token)
}

// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package inventory

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/toeirei/mikrobak/internal/model"
)

// Declaration is a parsed host-list line.
type Declaration struct {
	Device model.Device
	// Ignored lists tokens that were not recognized attributes.
	Ignored []string
}

// ParseDeclaration parses one host declaration of the form
//
//	<address> [key=value | key value]...
//
// Recognized keys are port, username (alias user) and password. Quotes group
// whitespace inside a value. An attribute written with an empty value
// (password=) is present and empty.
func ParseDeclaration(line string) (Declaration, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return Declaration{}, err
	}
	tokens = joinSpacedAssignments(tokens)
	if len(tokens) == 0 {
		return Declaration{}, fmt.Errorf("%w: empty host declaration", ErrInvalidConfig)
	}

	d := Declaration{Device: model.Device{Address: tokens[0]}}
	if strings.Contains(d.Device.Address, "=") {
		return Declaration{}, fmt.Errorf("%w: declaration %q does not start with an address", ErrInvalidConfig, line)
	}

	for i := 1; i < len(tokens); i++ {
		tok := tokens[i]
		key, value, hasEq := strings.Cut(tok, "=")
		if !hasEq {
			// "port 2222" form: a bare attribute name followed by its value.
			if isAttributeKey(tok) && i+1 < len(tokens) && !strings.Contains(tokens[i+1], "=") {
				key, value = tok, tokens[i+1]
				i++
			} else {
				d.Ignored = append(d.Ignored, tok)
				continue
			}
		}
		ok, err := setAttribute(&d.Device.Inline, key, value)
		if err != nil {
			return Declaration{}, fmt.Errorf("host %s: %w", d.Device.Address, err)
		}
		if !ok {
			d.Ignored = append(d.Ignored, tok)
		}
	}
	return d, nil
}

// joinSpacedAssignments turns "port", "=", "2222" into "port=2222".
func joinSpacedAssignments(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		if tokens[i] == "=" && len(out) > 1 && i+1 < len(tokens) {
			out[len(out)-1] += "=" + tokens[i+1]
			i++
			continue
		}
		out = append(out, tokens[i])
	}
	return out
}

func isAttributeKey(key string) bool {
	switch strings.ToLower(key) {
	case "port", "username", "user", "password":
		return true
	}
	return false
}

// setAttribute stores value under key. It reports false for unknown keys.
func setAttribute(a *model.Attributes, key, value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "port":
		port, err := ParsePort(value)
		if err != nil {
			return false, err
		}
		a.Port = model.Some(port)
	case "username", "user":
		a.Username = model.Some(value)
	case "password":
		a.Password = model.Some(value)
	default:
		return false, nil
	}
	return true, nil
}

// ParsePort validates a TCP port number.
func ParsePort(value string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: invalid port %q", ErrInvalidConfig, value)
	}
	return port, nil
}

// tokenize splits on whitespace. Single or double quotes group characters and
// are removed from the output.
func tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		cur     strings.Builder
		quote   rune
		inToken bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrInvalidConfig, line)
	}
	if inToken {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}

// unquote trims whitespace and one level of matching surrounding quotes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

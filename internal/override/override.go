// Package override reads per-sprite and per-texture override files.
//
// The packer configuration grammar is line oriented: '#' starts a comment,
// blank lines are ignored and every other line must be "key = value".
// Only the "border" key means anything to the packer; every other key is
// kept in file order and passed through to the generated definitions.
package override

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Key names interpreted by the packer.
const (
	KeyBorder = "border"
)

var (
	reComment = regexp.MustCompile(`#.*`)
	reKeyVal  = regexp.MustCompile(`(?i)^([a-z0-9_-]+)\s*=\s*(.+)$`)
)

// ErrInvalidBorder is returned when a border value is not a non-negative integer.
var ErrInvalidBorder = errors.New("invalid border value")

// SyntaxError reports a line that does not match "key = value".
type SyntaxError struct {
	Path string
	Line int
	Text string
}

func (e *SyntaxError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config syntax error at line %d: %q", e.Line, e.Text)
	}
	return fmt.Sprintf("config syntax error in %s:%d: %q", e.Path, e.Line, e.Text)
}

// Values is an ordered string map. Keys keep the order of their first
// assignment; reassigning a key updates the value in place.
type Values struct {
	keys []string
	vals map[string]string
}

// Set assigns value to key.
func (v *Values) Set(key, value string) {
	if v.vals == nil {
		v.vals = make(map[string]string)
	}
	if _, ok := v.vals[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.vals[key] = value
}

// Get returns the value for key.
func (v Values) Get(key string) (string, bool) {
	val, ok := v.vals[key]
	return val, ok
}

// Keys returns the keys in insertion order.
func (v Values) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Len returns the number of keys.
func (v Values) Len() int {
	return len(v.keys)
}

// Config is the parsed content of one override configuration file.
type Config struct {
	// Border is the per-sprite border, nil when the file does not set one.
	Border *int
	// Extra holds every key the packer does not interpret.
	Extra Values
}

// ResolveBorder returns the effective border: the larger of def and the
// override value.
func (c Config) ResolveBorder(def int) int {
	if c.Border != nil && *c.Border > def {
		return *c.Border
	}
	return def
}

// Parse reads a configuration from r. path is only used in error messages.
func Parse(r io.Reader, path string) (Config, error) {
	var cfg Config

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), math.MaxInt32)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(reComment.ReplaceAllString(raw, ""))
		if line == "" {
			continue
		}

		m := reKeyVal.FindStringSubmatch(line)
		if m == nil {
			return Config{}, &SyntaxError{Path: path, Line: lineNo, Text: line}
		}
		key, val := m[1], strings.TrimSpace(m[2])

		if key == KeyBorder {
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return Config{}, fmt.Errorf("%s:%d: %w %q", path, lineNo, ErrInvalidBorder, val)
			}
			cfg.Border = &n
			continue
		}
		cfg.Extra.Set(key, val)
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	return cfg, nil
}

// Load parses the file at path. A missing file yields an empty Config.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	defer f.Close()

	return Parse(f, path)
}

// ReadText returns the raw content of an override text file. ok is false
// when the file does not exist.
func ReadText(path string) (text string, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

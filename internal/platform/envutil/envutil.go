package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Source reads named settings. The zero value reads the process environment.
type Source struct {
	Lookup func(name string) string
}

// FromEnv reads the process environment.
func FromEnv() Source { return Source{Lookup: os.Getenv} }

func (s Source) raw(name string) string {
	if s.Lookup == nil {
		return strings.TrimSpace(os.Getenv(name))
	}
	return strings.TrimSpace(s.Lookup(name))
}

func (s Source) String(name, def string) string {
	if v := s.raw(name); v != "" {
		return v
	}
	return def
}

func (s Source) Int(name string, def int) int {
	v := s.raw(name)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func (s Source) Float(name string, def float64) float64 {
	v := s.raw(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func (s Source) Bool(name string, def bool) bool {
	switch strings.ToLower(s.raw(name)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// Seconds reads a positive whole number of seconds.
func (s Source) Seconds(name string, def time.Duration) time.Duration {
	n := s.Int(name, -1)
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

// List splits a comma-separated value, dropping empty entries.
func (s Source) List(name string, def []string) []string {
	v := s.raw(name)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Int(name string, def int) int { return FromEnv().Int(name, def) }

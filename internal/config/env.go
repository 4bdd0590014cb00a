package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// envReader overlays environment variables onto config values. Unset or blank
// variables keep the current value; malformed ones are collected and reported
// together by err.
type envReader struct {
	lookup func(string) string
	errs   []error
}

func newEnvReader() *envReader {
	return &envReader{lookup: os.Getenv}
}

func (e *envReader) raw(key string) (string, bool) {
	v := strings.TrimSpace(e.lookup(key))
	return v, v != ""
}

func (e *envReader) getString(key, current string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return current
}

func (e *envReader) getLower(key, current string) string {
	return strings.ToLower(e.getString(key, current))
}

func (e *envReader) getList(key string, current []string) []string {
	if v, ok := e.raw(key); ok {
		return splitList(v)
	}
	return current
}

func (e *envReader) getInt(key string, current int) int {
	return parseEnv(e, key, current, strconv.Atoi)
}

func (e *envReader) getFloat(key string, current float64) float64 {
	return parseEnv(e, key, current, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func (e *envReader) getBool(key string, current bool) bool {
	return parseEnv(e, key, current, strconv.ParseBool)
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

func parseEnv[T any](e *envReader, key string, current T, parse func(string) (T, error)) T {
	v, ok := e.raw(key)
	if !ok {
		return current
	}
	parsed, err := parse(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid value %q", key, v))
		return current
	}
	return parsed
}

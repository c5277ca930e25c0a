package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Format is the serialization of a query result.
type Format int

const (
	ArrowFormat Format = iota
	JSONFormat
)

func (f Format) String() string {
	switch f {
	case ArrowFormat:
		return "arrow"
	case JSONFormat:
		return "json"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Extension is the file extension used for artifacts of this format.
func (f Format) Extension() string {
	return f.String()
}

// FormatFromExtension maps an artifact extension back to its Format.
func FormatFromExtension(ext string) (Format, bool) {
	switch strings.TrimPrefix(ext, ".") {
	case "arrow":
		return ArrowFormat, true
	case "json":
		return JSONFormat, true
	default:
		return 0, false
	}
}

// CacheKey identifies one cached result: hex(sha256(sql)) + "." + extension.
type CacheKey string

var cacheKeyPattern = regexp.MustCompile(`^[0-9a-f]{64}\.(arrow|json)$`)

// KeyFor derives the cache key of sql rendered in format.
func KeyFor(sql string, format Format) CacheKey {
	sum := sha256.Sum256([]byte(sql))
	return CacheKey(hex.EncodeToString(sum[:]) + "." + format.Extension())
}

// ParseCacheKey validates a key read from an untrusted source such as a manifest.
func ParseCacheKey(s string) (CacheKey, error) {
	if !cacheKeyPattern.MatchString(s) {
		return "", fmt.Errorf("invalid cache key: %q", s)
	}
	return CacheKey(s), nil
}

// Format returns the format encoded in the key's extension.
func (k CacheKey) Format() (Format, error) {
	idx := strings.LastIndexByte(string(k), '.')
	if idx < 0 {
		return 0, fmt.Errorf("cache key %q has no extension", string(k))
	}
	format, ok := FormatFromExtension(string(k)[idx+1:])
	if !ok {
		return 0, fmt.Errorf("cache key %q has unknown extension", string(k))
	}
	return format, nil
}

func (k CacheKey) String() string {
	return string(k)
}

// Identity identifies the author of bundle history commits.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%s <%s>", i.Name, i.Email)
}

package utils

import (
	"os"
	"strings"

	"github.com/hashicorp/go-uuid"
	jsoniter "github.com/json-iterator/go"
)

var Json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewID returns a random UUID used as a resource identity.
func NewID() string {
	id, err := uuid.GenerateUUID()
	if err != nil {
		// crypto/rand is unavailable
		panic(err)
	}
	return id
}

func IsFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Truncate shortens s to n bytes for log and status messages.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// JoinURL joins URL segments with exactly one slash between them.
func JoinURL(base string, parts ...string) string {
	u := strings.TrimRight(base, "/")
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		u += "/" + p
	}
	return u
}

package utils

import (
	"crypto/rand"
	"encoding/hex"
	"runtime/debug"
	"strings"
)

// GetVersion returns the module version from the build info.
func GetVersion() string {
	build, ok := debug.ReadBuildInfo()
	if !ok {
		return "(devel)"
	}

	ver := build.Main.Version
	if ver == "" {
		return "(devel)"
	}

	return ver
}

// RandId generates a random ID of the given length (defaults to 16).
func RandId(strLen int) string {
	if strLen == 0 {
		strLen = 16
	}
	strLen = strLen / 2

	id := make([]byte, strLen)
	_, err := rand.Read(id)
	if err != nil {
		return "error"
	}

	return hex.EncodeToString(id)
}

// Indent prefixes each non-empty line of txt with prefix.
func Indent(txt, prefix string) string {
	lines := strings.Split(txt, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = prefix + l
		}
	}

	return strings.Join(lines, "\n")
}

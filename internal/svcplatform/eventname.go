package svcplatform

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"
)

// EventName derives the lowercased alphanumeric name for a generation's
// shutdown event from the absolute working directory and the current
// time, matching the source's "hash of absolute(workdir)+now()" naming
// rule. It is unique enough per generation without needing to be
// cryptographically unpredictable: its only job is avoiding collisions
// between concurrently running supervisor instances on the same host.
func EventName(workDir string) string {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		abs = workDir
	}
	sum := sha256.Sum256([]byte(abs + time.Now().Format(time.RFC3339Nano)))
	return "svcwd" + hex.EncodeToString(sum[:])[:32]
}

package logging

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// formatLocation renders the "file.func" prefix used ahead of the message
// text. If fn already contains a "::" separator (a qualified method name),
// it is used verbatim; otherwise the file's stem is prepended, matching
// the original watchdog's C++-derived convention.
func formatLocation(file, fn string) string {
	if strings.Contains(fn, "::") {
		return fn
	}
	if file == "" {
		return fn
	}
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	if fn == "" {
		return stem
	}
	return stem + "." + fn
}

// formatLine renders one log line: timestamp, level, optional thread-id
// hash, location, and message, terminated with a newline. threadID, when
// non-empty, is the bare 8-hex-digit hash (no surrounding brackets); it
// gets its own trailing ": " exactly like the location prefix, matching
// the original's "%08x: " snprintf field.
func formatLine(now time.Time, level Level, threadID string, location, message string) string {
	var b strings.Builder
	b.WriteString(now.Format("2006-01-02 15:04:05.000"))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("] ")
	if threadID != "" {
		b.WriteString(threadID)
		b.WriteString(": ")
	}
	if location != "" {
		b.WriteString(location)
		b.WriteString(": ")
	}
	b.WriteString(message)
	b.WriteString("\n")
	return b.String()
}

// currentThreadIDHash returns the 8-lowercase-hex-digit thread-id hash
// used ahead of the location prefix when LogThreadID is set, matching
// the original's `std::hash<std::thread::id>` truncated to 32 bits. Go
// has no OS thread handle to hash, so the goroutine id parsed out of a
// runtime.Stack dump stands in for it: distinct concurrently-logging
// goroutines still get distinct, stable-for-their-lifetime tags.
func currentThreadIDHash() string {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatUint(currentGoroutineID(), 10)))
	return fmt.Sprintf("%08x", h.Sum32())
}

// currentGoroutineID parses the numeric id out of the calling
// goroutine's own stack header ("goroutine 123 [running]: ...").
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// Sprintf is the printf-style convenience used by Msg.
func Sprintf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

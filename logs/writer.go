package logs

import (
	"fmt"
	"io"
	"os"
)

// Writer receives text log output. Stdout belongs to the console and fault records,
// so logs go to stderr unless LogFileEnv names a file to append to.
type Writer io.Writer

const LogFileEnv = "BOTRUN_LOG_FILE"

func (Module) Writer() Writer {
	return openWriter(os.Getenv(LogFileEnv))
}

func openWriter(path string) Writer {
	if path == "" {
		return os.Stderr
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log file %s: %v, logging to stderr\n", path, err)
		return os.Stderr
	}
	return f
}

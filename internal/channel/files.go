package channel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Protocol file names inside the channel directory.
const (
	CommandFile  = "command.csv"
	ResponseFile = "response.csv"
	StatusFile   = "status.csv"
	ReturnFile   = "return.csv"
)

const (
	delimiter   = ","
	endSentinel = "end"
	flagSet     = "1"
)

// ReadRecord reads the first record of a protocol file and splits it into
// fields. Surrounding whitespace and the line ending are stripped from each
// field.
func ReadRecord(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	line, _, _ := strings.Cut(string(data), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrMalformedFile, filepath.Base(path))
	}

	fields := strings.Split(line, delimiter)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}

// readValues reads a return or status file and drops the trailing end
// sentinel. A record without the sentinel is treated as partially written.
func readValues(path string) ([]string, error) {
	fields, err := ReadRecord(path)
	if err != nil {
		return nil, err
	}
	last := len(fields) - 1
	if fields[last] != endSentinel {
		return nil, fmt.Errorf("%w: %s has no %q sentinel", ErrMalformedFile, filepath.Base(path), endSentinel)
	}
	return fields[:last], nil
}

// WriteFileAtomic replaces path with data via a temporary file in the same
// directory, so a concurrent reader sees either the old or the new content.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting mode on %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

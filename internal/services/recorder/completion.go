package recorder

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// completionMarker appears in the trailing bytes of a finished recording's
// raw log. Matching it is a heuristic, not a structural guarantee: nothing
// prevents the substring from appearing in unrelated content, an accepted
// risk of the format.
const completionMarker = `"endTime"`

// tailBytes bounds how much of a raw log is read when checking for the
// completion marker, keeping the scan cheap on large logs.
const tailBytes = 4096

// CompletedEpisodeIDs returns the ids of episodes under dir whose raw log
// tail carries the end-of-episode marker. A missing directory yields an
// empty set.
func CompletedEpisodeIDs(dir string) map[string]struct{} {
	completed := map[string]struct{}{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return completed
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		rawFile := filepath.Join(dir, name, "raw", name+".jsonl")
		if containsCompletionMarker(rawFile) {
			completed[name] = struct{}{}
		}
	}
	return completed
}

func containsCompletionMarker(path string) bool {
	tail, err := readTail(path, tailBytes)
	if err != nil {
		return false
	}
	return bytes.Contains(tail, []byte(completionMarker))
}

func readTail(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	read := size
	if read > maxBytes {
		read = maxBytes
	}
	if _, err := file.Seek(-read, io.SeekEnd); err != nil {
		return nil, err
	}
	return io.ReadAll(file)
}

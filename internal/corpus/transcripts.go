package corpus

import (
	"encoding/json"
	"fmt"
	"io"
)

// transcriptTableSuffix identifies the transcript table member inside a
// source archive.
const transcriptTableSuffix = "_Transcripts.json"

// transcriptEntry is one row of the transcript table. Some corpus exports
// carry malformed rows (plain strings instead of objects); those decode to
// an empty entry rather than failing the whole table.
type transcriptEntry struct {
	Transcript string `json:"Transcript"`
	Domain     string `json:"Domain"`
}

// UnmarshalJSON tolerates non-object rows by leaving the entry empty.
func (e *transcriptEntry) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || data[0] != '{' {
		*e = transcriptEntry{}
		return nil
	}

	type plain transcriptEntry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = transcriptEntry(p)
	return nil
}

// decodeTranscriptTable reads the transcript table member and returns the
// file_id -> entry mapping.
func decodeTranscriptTable(r io.Reader) (map[string]transcriptEntry, error) {
	var table struct {
		Transcripts map[string]transcriptEntry `json:"Transcripts"`
	}

	if err := json.NewDecoder(r).Decode(&table); err != nil {
		return nil, fmt.Errorf("decoding transcript table: %w", err)
	}

	if table.Transcripts == nil {
		return map[string]transcriptEntry{}, nil
	}
	return table.Transcripts, nil
}

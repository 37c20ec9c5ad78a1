package corpus

import (
	"encoding/json"
	"strings"
)

// categoryUnknown is used when a file ID carries no category token.
const categoryUnknown = "unknown"

// Speaker is the speaker metadata stamped onto every record of a source.
type Speaker struct {
	ID       string
	Gender   string
	Age      int
	Language string
}

// Record is one corpus utterance: a unique file ID plus its transcript and
// speaker metadata. Immutable once produced by the streamer.
type Record struct {
	FileID        string
	Text          string
	Category      string
	Domain        string
	SpeakerID     string
	SpeakerGender string
	SpeakerAge    int
	Language      string
}

// Sidecar is the JSON metadata object paired with each audio entry in a
// shard. Field order and names follow the WebDataset layout consumers of
// the dataset expect.
type Sidecar struct {
	Text          string `json:"text"`
	FileID        string `json:"file_id"`
	Category      string `json:"category"`
	Domain        string `json:"domain"`
	SpeakerID     string `json:"speaker_id"`
	SpeakerGender string `json:"speaker_gender"`
	SpeakerAge    int    `json:"speaker_age"`
	Language      string `json:"language"`
}

// Sidecar returns the JSON sidecar view of the record.
func (r Record) Sidecar() Sidecar {
	return Sidecar{
		Text:          r.Text,
		FileID:        r.FileID,
		Category:      r.Category,
		Domain:        r.Domain,
		SpeakerID:     r.SpeakerID,
		SpeakerGender: r.SpeakerGender,
		SpeakerAge:    r.SpeakerAge,
		Language:      r.Language,
	}
}

// MarshalSidecar serializes the record's sidecar metadata to JSON.
func (r Record) MarshalSidecar() ([]byte, error) {
	return json.Marshal(r.Sidecar())
}

// CategoryFromFileID derives the category code from a corpus file ID.
// IDs look like "IISc_SPICOR_Gujarati_..._SPOR_00042"; the category is the
// second-to-last underscore-separated token. IDs with fewer than two
// tokens map to "unknown".
func CategoryFromFileID(fileID string) string {
	parts := strings.Split(fileID, "_")
	if len(parts) < 2 {
		return categoryUnknown
	}
	return parts[len(parts)-2]
}

package speech

import (
	"strings"

	"github.com/telecare/consult/internal/domain"
)

// symptomKeywords is scanned in order; matches keep list order.
var symptomKeywords = []string{
	"pain", "ache", "hurt", "sore", "fever", "cough", "headache",
	"nausea", "dizzy", "tired", "weak", "swelling", "rash",
	"breathing", "chest", "stomach", "back", "joint", "muscle",
}

const summaryTextLimit = 500

// ExtractKeywords finds symptom terms by case-insensitive substring
// match against the fixed list.
func ExtractKeywords(transcript string) []string {
	lower := strings.ToLower(transcript)
	found := []string{}
	for _, kw := range symptomKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// Summary aggregates a session's transcript entries.
type Summary struct {
	TotalTranscripts int      `json:"total_transcripts"`
	TotalWords       int      `json:"total_words"`
	DetectedSymptoms []string `json:"detected_symptoms"`
	FullTranscript   string   `json:"full_transcript"`
}

// Summarize joins all transcript text, extracts symptom keywords and
// truncates the joined text to 500 characters.
func Summarize(entries []domain.TranscriptEntry) Summary {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.Text)
	}
	full := strings.Join(parts, " ")

	truncated := full
	if len(truncated) > summaryTextLimit {
		truncated = truncated[:summaryTextLimit]
	}

	return Summary{
		TotalTranscripts: len(entries),
		TotalWords:       len(strings.Fields(full)),
		DetectedSymptoms: ExtractKeywords(full),
		FullTranscript:   truncated,
	}
}

// Package domain contains entities without logic, just meta-data.
package domain

import "time"

type SessionID string

// Role determines which connection slot a participant occupies.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// ParseRole maps a wire value to a Role. Anything unrecognized
// falls back to patient, matching the client default.
func ParseRole(s string) Role {
	if s == string(RoleDoctor) {
		return RoleDoctor
	}
	return RolePatient
}

// TranscriptEntry is one transcribed utterance.
type TranscriptEntry struct {
	Timestamp string `json:"timestamp"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
}

// Annotation is one frame-analysis result.
type Annotation struct {
	Timestamp string `json:"timestamp"`
	Analysis  any    `json:"analysis"`
}

// Session is the logical consultation pairing one doctor and one patient.
// Connection ids are the currently-attached transports per role; a re-join
// overwrites the slot without disconnecting the prior transport.
type Session struct {
	ID          SessionID         `json:"session_id"`
	CreatedAt   time.Time         `json:"created_at"`
	DoctorSID   string            `json:"doctor_sid,omitempty"`
	PatientSID  string            `json:"patient_sid,omitempty"`
	Transcripts []TranscriptEntry `json:"transcripts"`
	CVAnalysis  []Annotation      `json:"cv_analysis"`
}

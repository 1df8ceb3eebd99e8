package model

// Word is a single recognized word with its provider confidence score.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// TranscriptSegment is one timestamped span of transcribed speech. Segments
// are ordered by Start ascending and do not overlap in a well-formed
// transcript.
type TranscriptSegment struct {
	ID       int     `json:"id"`
	Start    float64 `json:"start_offset_s"`
	Duration float64 `json:"duration_s"`
	Text     string  `json:"text"`
	Words    []Word  `json:"words,omitempty"`
	Speaker  *string `json:"speaker,omitempty"`
}

// End returns the end offset of the segment in seconds.
func (s TranscriptSegment) End() float64 {
	return s.Start + s.Duration
}

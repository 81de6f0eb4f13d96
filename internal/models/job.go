package models

// TranscriptSegment is one timestamped span of speech. Start and End are seconds.
type TranscriptSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Job is the payload passed between stages. Stages never modify a Job,
// they return an extended copy via the With* methods.
type Job struct {
	ID             string              `json:"id" validate:"required"`
	Filename       string              `json:"filename"`
	Filepath       string              `json:"filepath,omitempty"`
	MimeType       string              `json:"mimeType,omitempty"`
	Encoding       string              `json:"encoding,omitempty"`
	AudioPath      string              `json:"audioPath,omitempty"`
	Transcriptions []TranscriptSegment `json:"transcriptions,omitempty"`
	Outputs        []OutputSegment     `json:"outputs,omitempty"`
}

func (j Job) WithAudio(path string) Job {
	j.Transcriptions = cloneSegments(j.Transcriptions)
	j.Outputs = cloneOutputs(j.Outputs)
	j.AudioPath = path
	return j
}

func (j Job) WithTranscriptions(segments []TranscriptSegment) Job {
	j.Outputs = cloneOutputs(j.Outputs)
	j.Transcriptions = cloneSegments(segments)
	return j
}

func (j Job) WithOutputs(outputs []OutputSegment) Job {
	j.Transcriptions = cloneSegments(j.Transcriptions)
	j.Outputs = cloneOutputs(outputs)
	return j
}

func cloneSegments(s []TranscriptSegment) []TranscriptSegment {
	if s == nil {
		return nil
	}
	return append([]TranscriptSegment(nil), s...)
}

func cloneOutputs(o []OutputSegment) []OutputSegment {
	if o == nil {
		return nil
	}
	return append([]OutputSegment(nil), o...)
}

package models

const (
	MimeTypeVideoMP4 = "video/mp4"
	MimeTypeAudioMP3 = "audio/mp3"
)

type UploadResult struct {
	SecureURL string `json:"secure_url"`
	Key       string `json:"key"`
	Bucket    string `json:"bucket"`
}

// SubmitInput describes a video accepted at ingestion.
type SubmitInput struct {
	Filename string `json:"filename" validate:"required,lte=255"`
	MimeType string `json:"mimeType" validate:"required,startswith=video/"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size" validate:"gte=0"`
}

package models

// Chunk is one size-bounded slice of a media file. SequenceIndex is its
// position in the original timeline.
type Chunk struct {
	SequenceIndex int
	Data          []byte
	ByteSize      int64
	FileName      string
}

type TranscriptionResult struct {
	SequenceIndex int
	Text          string
}

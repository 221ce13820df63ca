package models

type FileType string

const (
	FileTypeText     FileType = "text"
	FileTypeMarkdown FileType = "markdown"
	FileTypeAudio    FileType = "audio"
	FileTypeVideo    FileType = "video"
)

// Asset is the file whose textual content a job derives.
type Asset struct {
	ID         string   `json:"id"`
	ProjectID  string   `json:"projectId,omitempty"`
	Title      string   `json:"title,omitempty"`
	FileName   string   `json:"fileName"`
	FileURL    string   `json:"fileUrl"`
	FileType   FileType `json:"fileType"`
	MimeType   string   `json:"mimeType"`
	Size       int64    `json:"size"`
	Content    *string  `json:"content,omitempty"`
	TokenCount int      `json:"tokenCount"`
}

type AssetPatch struct {
	Content    string `json:"content"`
	TokenCount int    `json:"tokenCount"`
}

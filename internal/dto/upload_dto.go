package dto

// UploadForm holds the multipart fields accepted by the upload endpoint.
type UploadForm struct {
	Folder     string `form:"folder" validate:"omitempty,max=128"`
	Filename   string `form:"filename" validate:"omitempty,max=255"`
	StudentID  string `form:"studentId" validate:"omitempty,max=64"`
	ExerciseID string `form:"exerciseId" validate:"omitempty,max=64"`
	ClassID    string `form:"classId" validate:"omitempty,max=64"`
	UploadType string `form:"uploadType" validate:"omitempty,oneof=answer_scheme rubric submission generic"`
}

// UploadResponse describes an object stored on the media host.
type UploadResponse struct {
	Success      bool   `json:"success"`
	URL          string `json:"url"`
	PublicID     string `json:"publicId"`
	OriginalName string `json:"originalName"`
	FileType     string `json:"fileType"`
	FileSize     int64  `json:"fileSize"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Overwritten  bool   `json:"overwritten"`
}

// DeleteUploadRequest identifies an object to remove.
type DeleteUploadRequest struct {
	PublicID string `json:"publicId" validate:"required,max=512"`
}

// DeleteUploadResponse reports a deletion. Absent objects still count as success.
type DeleteUploadResponse struct {
	Success     bool `json:"success"`
	WasNotFound bool `json:"wasNotFound,omitempty"`
}

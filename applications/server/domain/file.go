package domain

import (
	"fmt"
	"io"
)

// AllowedExtension is the only file name suffix accepted for upload.
const AllowedExtension = ".txt"

const (
	MessageUploaded         = "Files uploaded successfully"
	MessageNoFiles          = "No files provided"
	MessageUploadFailed     = "Failed to upload files"
	MessageProcessingFailed = "Failed to process file"
)

// MessageExtensionNotAllowed is returned when any file of a batch has a wrong extension.
var MessageExtensionNotAllowed = fmt.Sprintf("Only %s files are allowed", AllowedExtension)

// UploadItem is one file of a batch. Body is read exactly once by the
// processor that owns the item.
type UploadItem struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// FileMeta describes a stored file after it went through the scanner.
type FileMeta struct {
	Key         string
	Size        int64
	ContentType string
	VirusFree   bool
}

// BatchOutcome is the single result of a submitted batch.
type BatchOutcome struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	UploadedFiles []string `json:"uploadedFiles"`
}

func SucceededOutcome(keys []string) BatchOutcome {
	return BatchOutcome{
		Success:       true,
		Message:       MessageUploaded,
		UploadedFiles: keys,
	}
}

func FailedOutcome(message string) BatchOutcome {
	return BatchOutcome{
		Success: false,
		Message: message,
	}
}

package core

// FileState is the processing state of a hosted file
type FileState string

const (
	FileStateUnspecified FileState = "STATE_UNSPECIFIED"
	FileStateProcessing  FileState = "PROCESSING"
	FileStateActive      FileState = "ACTIVE"
	FileStateFailed      FileState = "FAILED"
)

// RemoteFile is a handle to a file uploaded to a hosted model service.
type RemoteFile struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name,omitempty"`
	URI         string    `json:"uri"`
	MIMEType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	State       FileState `json:"state"`
	// Error is the remote status message for FAILED files
	Error string `json:"error,omitempty"`
}

// Processing reports whether the remote service is still working on the file.
func (f *RemoteFile) Processing() bool {
	return f.State == FileStateProcessing
}

package types

// UploadResponse is returned by POST /upload. Path is the absolute server-side
// location of the stored file, meant to be typed into the terminal.
type UploadResponse struct {
	Path string `json:"path"`
}

// Health is returned by GET /health.
type Health struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"` // connected terminals
	Shells   int    `json:"shells"`   // shell processes still running
}

package transfer

// DTOs for the legacy cookie-based web surface. Errors from this surface are
// frequently non-JSON (HTML login walls, plain-text checkpoint notices), so
// callers must not assume these shapes parse.

type WebUploadResponse struct {
	UploadID string `json:"upload_id"`
	Status   string `json:"status"`
}

type WebCreateResponse struct {
	Status string `json:"status"`
	Media  struct {
		ID   string `json:"id"`
		Code string `json:"code"`
	} `json:"media"`
	Message string `json:"message"`
}

type WebDeleteResponse struct {
	Status string `json:"status"`
}

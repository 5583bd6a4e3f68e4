package transfer

// DTOs for the token-based Graph publishing surface. A post is staged as a
// container in one call and published with a second call referencing the
// container id.

type GraphContainerResponse struct {
	ID string `json:"id"`
}

type GraphPublishResponse struct {
	ID string `json:"id"`
}

type GraphErrorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		IsTransient  bool   `json:"is_transient"`
		FbtraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

type GraphTokenRefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

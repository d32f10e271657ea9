package api

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewErrorResponse(err string, details ...string) ErrorResponse {
	resp := ErrorResponse{Error: err}
	if len(details) > 0 {
		resp.Message = details[0]
	}
	return resp
}

type ActionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ScanRequest is the body of POST /scans.
type ScanRequest struct {
	Target string `json:"target" validate:"required,fqdn"`
}

// ScanResponse acknowledges an accepted scan.
type ScanResponse struct {
	ScanID string `json:"scan_id"`
	Status string `json:"status"`
}

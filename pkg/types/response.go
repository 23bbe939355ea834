package types

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// SuccessResponse is the acknowledgement body of mutating endpoints.
type SuccessResponse struct {
	Success bool `json:"success"`
}

package types

// SuccessEnvelope is the uniform success payload shape.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorEnvelope is the uniform error payload shape.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// APIError carries the public error surface.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

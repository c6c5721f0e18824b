package v1

// apiError renders as {"error": "..."} with the given status, matching the
// documented introspection error shape instead of huma's problem documents.
type apiError struct {
	Message string `json:"error"`
	status  int
}

func (e *apiError) Error() string { return e.Message }

func (e *apiError) GetStatus() int { return e.status }

func (e *apiError) ContentType(string) string { return "application/json" }

func notFoundError(msg string) *apiError {
	return &apiError{Message: msg, status: 404}
}

func internalError(msg string) *apiError {
	return &apiError{Message: msg, status: 500}
}

func forbiddenError(msg string) *apiError {
	return &apiError{Message: msg, status: 403}
}

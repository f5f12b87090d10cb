package model

// Response is a generic struct for API responses
type Response struct {
	Data    interface{} `json:"data,omitempty"`
	Error   *string     `json:"error,omitempty"`
	Message string      `json:"message"`
}

// Success wraps data in a successful envelope.
func Success(data interface{}) Response {
	return Response{Data: data, Message: "Success"}
}

// Failure builds an error envelope. data may carry partial state, such as
// a display state whose last lookup failed.
func Failure(errMsg string, data interface{}) Response {
	return Response{Data: data, Error: &errMsg, Message: "Error"}
}

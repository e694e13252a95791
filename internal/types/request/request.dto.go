package request

// MaxMessageLength is the limit, in characters, of a sanitized request message.
const MaxMessageLength = 500

type SendRequest struct {
	ReceiverID string  `json:"receiverId" validate:"required,max=128"`
	Message    *string `json:"message,omitempty" validate:"omitempty,max=2000"`
}

type RespondRequest struct {
	Action Action `json:"action" validate:"required,oneof=accept reject"`
}

type SendResult struct {
	Request           *ConnectionRequest `json:"request"`
	RemainingRequests int                `json:"remainingRequests"`
}

type SendResponse struct {
	Message           string             `json:"message"`
	RemainingRequests int                `json:"remainingRequests"`
	Request           *ConnectionRequest `json:"request"`
}

type QuotaResponse struct {
	RemainingRequests int `json:"remainingRequests"`
	DailyLimit        int `json:"dailyLimit"`
}

package models

// Notification pushed over the websocket channel.
type Notification struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type CommitCompletedEvent struct {
	GenerationID string `json:"generation_id"`
	Count        int    `json:"count"`
}

type SessionCompletedEvent struct {
	SessionID       string   `json:"session_id"`
	FlashcardsCount int      `json:"flashcards_count"`
	AverageRating   *float64 `json:"average_rating,omitempty"`
}

// API error envelope.
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

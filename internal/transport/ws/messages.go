package ws

import (
	"encoding/json"

	"quiz-duel-service/internal/domain"
)

// inboundMessage is the envelope every client event arrives in.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createRoomPayload struct {
	Username string `json:"username"`
}

type joinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type startMatchPayload struct {
	RoomID string `json:"roomId"`
}

type submitAnswerPayload struct {
	RoomID      string `json:"roomId"`
	Question    int    `json:"question,omitempty"` // optional; 1-based as delivered in questionStart, current question when omitted
	AnswerIndex int    `json:"answerIndex"`
}

// outboundMessage is the envelope every server event leaves in.
type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type playerJoinedPayload struct {
	Username     string                   `json:"username"`
	Participants []domain.ParticipantView `json:"participants"`
}

type countdownStartPayload struct {
	Seconds int `json:"seconds"`
}

// questionPayload carries a client-safe question; used for both
// questionStart and nextQuestion.
type questionPayload struct {
	Question  domain.QuestionView `json:"question"`
	Number    int                 `json:"number"`
	Total     int                 `json:"total"`
	TimeLimit int                 `json:"timeLimit"` // seconds
}

type answerResultPayload struct {
	IsCorrect    bool `json:"isCorrect"`
	Points       int  `json:"points"`
	CorrectIndex int  `json:"correctIndex"`
	YourScore    int  `json:"yourScore"`
}

type scoreUpdatePayload struct {
	Participants []domain.ParticipantView `json:"participants"`
}

type matchFinishedPayload struct {
	Winner      string                   `json:"winner,omitempty"`
	Draw        bool                     `json:"draw"`
	FinalScores []domain.ParticipantView `json:"finalScores"`
}

type opponentDisconnectedPayload struct {
	Message     string                   `json:"message"`
	Winner      string                   `json:"winner"`
	FinalScores []domain.ParticipantView `json:"finalScores"`
}

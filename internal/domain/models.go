package domain

import "time"

// RoomStatus tracks a room through its life. Transitions are monotonic:
// waiting -> countdown -> live -> finished, and finished is terminal.
type RoomStatus string

const (
	StatusWaiting   RoomStatus = "waiting"
	StatusCountdown RoomStatus = "countdown"
	StatusLive      RoomStatus = "live"
	StatusFinished  RoomStatus = "finished"
)

// Role marks which seat a participant occupies. The host is the room
// creator and the only participant allowed to start the match.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Participant is one of the (at most two) players in a room.
type Participant struct {
	SessionID string
	Username  string
	Role      Role
	Score     int
	Answered  bool // answered the current question
}

// Choice is one selectable answer for a question.
type Choice struct {
	Text string `json:"text"`
}

// Question models an MCQ item with exactly one correct choice.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Choices      []Choice `json:"choices"`
	CorrectIndex int      `json:"correctIndex"`
	Difficulty   string   `json:"difficulty"`
	Points       int      `json:"points"` // defaults to 10 if zero
}

// PointValue returns the question's score value with the default applied.
func (q Question) PointValue() int {
	if q.Points > 0 {
		return q.Points
	}
	return 10
}

// QuestionView is the client-safe projection of a question. The correct
// index never appears here; this is the only question shape that crosses
// the wire toward a client.
type QuestionView struct {
	ID         string   `json:"id"`
	Prompt     string   `json:"prompt"`
	Choices    []Choice `json:"choices"`
	Difficulty string   `json:"difficulty"`
	Points     int      `json:"points"`
}

// View strips the correct answer from a question.
func (q Question) View() QuestionView {
	return QuestionView{
		ID:         q.ID,
		Prompt:     q.Prompt,
		Choices:    q.Choices,
		Difficulty: q.Difficulty,
		Points:     q.PointValue(),
	}
}

// ParticipantView is the snapshot-friendly projection of a participant.
type ParticipantView struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Score    int    `json:"score"`
	Answered bool   `json:"answered"`
}

// RoomSnapshot describes room state to clients: names, roles and scores,
// never question content.
type RoomSnapshot struct {
	Code         string            `json:"roomId"`
	Status       RoomStatus        `json:"status"`
	Participants []ParticipantView `json:"participants"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Outcome classifies a single player's result in a finished match.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

// PlayerResult is the per-player slice of a finished match, the unit the
// match reporter consumes.
type PlayerResult struct {
	Username string  `json:"username"`
	Score    int     `json:"score"`
	Outcome  Outcome `json:"outcome"`
	Mode     string  `json:"mode"`
}

// MatchResult is the final verdict of a match.
type MatchResult struct {
	RoomCode    string            `json:"roomId"`
	Winner      string            `json:"winner,omitempty"` // empty on a draw
	Draw        bool              `json:"draw"`
	Forfeit     bool              `json:"forfeit"`
	FinalScores []ParticipantView `json:"finalScores"`
}

// PlayerResults expands the verdict into one entry per participant.
func (m MatchResult) PlayerResults(mode string) []PlayerResult {
	results := make([]PlayerResult, 0, len(m.FinalScores))
	for _, p := range m.FinalScores {
		outcome := OutcomeDraw
		if !m.Draw {
			if p.Username == m.Winner {
				outcome = OutcomeWin
			} else {
				outcome = OutcomeLoss
			}
		}
		results = append(results, PlayerResult{
			Username: p.Username,
			Score:    p.Score,
			Outcome:  outcome,
			Mode:     mode,
		})
	}
	return results
}

package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no live room holds the given code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull is returned when a third participant tries to join.
	ErrRoomFull = errors.New("room is full")
	// ErrAlreadyStarted is returned for join/start against a room past waiting.
	ErrAlreadyStarted = errors.New("match already started")
	// ErrAlreadyJoined is returned when a session joins a room twice.
	ErrAlreadyJoined = errors.New("already in this room")
	// ErrNotEnoughPlayers is returned when start is called before the guest arrives.
	ErrNotEnoughPlayers = errors.New("need two players to start")
	// ErrNotHost is returned when a non-host participant tries to start the match.
	ErrNotHost = errors.New("only the host can start the match")
	// ErrNotLive is returned for answers against a room that is not running.
	ErrNotLive = errors.New("match is not live")
	// ErrWrongStatus is returned for a transition illegal in the room's status.
	ErrWrongStatus = errors.New("operation not allowed in current room status")
	// ErrParticipantNotFound is returned when a session is not part of the room.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrAlreadyAnswered is returned for a second answer to the same question.
	ErrAlreadyAnswered = errors.New("already answered this question")
	// ErrNoActiveQuestion is returned when an answer targets a question that is
	// no longer (or not yet) current, e.g. after a timer-forced advance.
	ErrNoActiveQuestion = errors.New("no active question for this answer")
	// ErrInvalidChoice is returned when the submitted choice index is out of range.
	ErrInvalidChoice = errors.New("choice index out of range")
	// ErrCodespaceExhausted indicates room code allocation gave up after
	// repeated collisions; effectively a configuration fault.
	ErrCodespaceExhausted = errors.New("room code space exhausted")
	// ErrQuestionBankEmpty indicates the question source cannot satisfy a pick.
	ErrQuestionBankEmpty = errors.New("question bank is empty")
)

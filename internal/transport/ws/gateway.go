package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

// Config fixes the protocol timing both ends rely on. Values are not
// negotiated per room.
type Config struct {
	Countdown         time.Duration
	QuestionTimeLimit time.Duration
	QuestionPause     time.Duration
	RoomMaxAge        time.Duration
	SweepInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Countdown:         3 * time.Second,
		QuestionTimeLimit: 15 * time.Second,
		QuestionPause:     2 * time.Second,
		RoomMaxAge:        30 * time.Minute,
		SweepInterval:     5 * time.Minute,
	}
}

// Gateway bridges websocket connections to the room lifecycle engine and
// owns all wall-clock timing: the pre-match countdown, the per-question
// limit, the inter-question pause and the stale-room sweep.
type Gateway struct {
	service  *app.RoomService
	reporter app.MatchReporter
	clock    clockwork.Clock
	cfg      Config
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu     sync.Mutex
	rooms  map[string]map[*client]bool
	timers map[string]*roomTimer
}

func NewGateway(service *app.RoomService, reporter app.MatchReporter, clock clockwork.Clock, cfg Config, log zerolog.Logger) *Gateway {
	return &Gateway{
		service:  service,
		reporter: reporter,
		clock:    clock,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:    log.With().Str("component", "gateway").Logger(),
		rooms:  make(map[string]map[*client]bool),
		timers: make(map[string]*roomTimer),
	}
}

// client is one websocket connection. A connection is bound to at most one
// room at a time; the session ID doubles as the participant identity.
type client struct {
	sessionID string
	username  string
	room      string // guarded by Gateway.mu
	closed    bool   // guarded by Gateway.mu
	conn      *websocket.Conn
	send      chan []byte
}

// Run drives the periodic stale-room sweep until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) {
	ticker := g.clock.NewTicker(g.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			g.sweep()
		}
	}
}

func (g *Gateway) sweep() {
	for _, code := range g.service.SweepStale(g.cfg.RoomMaxAge) {
		g.cancelTimer(code)
		g.broadcast(code, nil, outboundMessage[errorPayload]{
			Type:    "error",
			Payload: errorPayload{Message: "room expired"},
		})
		g.unbindRoom(code)
	}
}

// ServeWS upgrades the request and pumps events for the connection's life.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	c := &client{
		sessionID: uuid.NewString(),
		conn:      conn,
		send:      make(chan []byte, 16),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				g.log.Debug().Err(err).Str("session", c.sessionID).Msg("ws write error")
				return
			}
		}
	}()

	g.readLoop(c)

	g.handleDisconnect(c)

	g.mu.Lock()
	c.closed = true
	g.mu.Unlock()
	close(c.send)
	<-writerDone
	_ = conn.Close()
}

func (g *Gateway) readLoop(c *client) {
	for {
		var inbound inboundMessage
		if err := c.conn.ReadJSON(&inbound); err != nil {
			return
		}
		g.dispatch(c, inbound)
	}
}

// dispatch routes one inbound event. Engine failures surface to the
// originating connection only; nothing is broadcast on failure.
func (g *Gateway) dispatch(c *client, inbound inboundMessage) {
	switch inbound.Type {
	case "createRoom":
		var p createRoomPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.Username == "" {
			g.sendError(c, "createRoom requires a username")
			return
		}
		g.handleCreate(c, p)
	case "joinRoom":
		var p joinRoomPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" || p.Username == "" {
			g.sendError(c, "joinRoom requires roomId and username")
			return
		}
		g.handleJoin(c, p)
	case "startMatch":
		var p startMatchPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" {
			g.sendError(c, "startMatch requires roomId")
			return
		}
		g.handleStart(c, p)
	case "submitAnswer":
		var p submitAnswerPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" || p.Question < 0 || p.AnswerIndex < 0 {
			g.sendError(c, "submitAnswer requires roomId and answerIndex")
			return
		}
		g.handleAnswer(c, p)
	default:
		g.sendError(c, "unsupported message type")
	}
}

func (g *Gateway) handleCreate(c *client, p createRoomPayload) {
	if g.clientRoom(c) != "" {
		g.sendError(c, "already in a room")
		return
	}

	snapshot, err := g.service.Create(context.Background(), c.sessionID, p.Username)
	if err != nil {
		g.log.Error().Err(err).Msg("room creation failed")
		g.sendError(c, "could not create room")
		return
	}

	c.username = p.Username
	g.bind(c, snapshot.Code)
	g.sendTo(c, outboundMessage[domain.RoomSnapshot]{Type: "roomCreated", Payload: snapshot})
}

func (g *Gateway) handleJoin(c *client, p joinRoomPayload) {
	if g.clientRoom(c) != "" {
		g.sendError(c, "already in a room")
		return
	}

	snapshot, err := g.service.Join(context.Background(), p.RoomID, c.sessionID, p.Username)
	if err != nil {
		g.sendError(c, err.Error())
		return
	}

	c.username = p.Username
	g.bind(c, snapshot.Code)
	g.sendTo(c, outboundMessage[domain.RoomSnapshot]{Type: "roomJoined", Payload: snapshot})
	g.broadcast(snapshot.Code, c, outboundMessage[playerJoinedPayload]{
		Type:    "playerJoined",
		Payload: playerJoinedPayload{Username: p.Username, Participants: snapshot.Participants},
	})
	if len(snapshot.Participants) == 2 {
		g.broadcast(snapshot.Code, nil, outboundMessage[domain.RoomSnapshot]{Type: "roomReady", Payload: snapshot})
	}
}

func (g *Gateway) handleStart(c *client, p startMatchPayload) {
	if g.clientRoom(c) != p.RoomID {
		g.sendError(c, "not in this room")
		return
	}

	if err := g.service.Start(context.Background(), p.RoomID, c.sessionID); err != nil {
		g.sendError(c, err.Error())
		return
	}

	seconds := int(g.cfg.Countdown / time.Second)
	g.broadcast(p.RoomID, nil, outboundMessage[countdownStartPayload]{
		Type:    "countdownStart",
		Payload: countdownStartPayload{Seconds: seconds},
	})

	code := p.RoomID
	g.armTimer(code, countdownStage, g.cfg.Countdown, func() { g.beginMatch(code) })
}

func (g *Gateway) handleAnswer(c *client, p submitAnswerPayload) {
	if g.clientRoom(c) != p.RoomID {
		g.sendError(c, "not in this room")
		return
	}

	// An omitted question number becomes -1 and the engine scores against
	// whatever question is current.
	outcome, err := g.service.SubmitAnswer(p.RoomID, c.sessionID, p.Question-1, p.AnswerIndex)
	if err != nil {
		g.sendError(c, err.Error())
		return
	}

	// The revealed correct index goes to the submitter only.
	g.sendTo(c, outboundMessage[answerResultPayload]{
		Type: "answerResult",
		Payload: answerResultPayload{
			IsCorrect:    outcome.Correct,
			Points:       outcome.Awarded,
			CorrectIndex: outcome.CorrectIndex,
			YourScore:    outcome.TotalScore,
		},
	})
	g.broadcast(p.RoomID, nil, outboundMessage[scoreUpdatePayload]{
		Type:    "scoreUpdate",
		Payload: scoreUpdatePayload{Participants: outcome.Scoreboard},
	})

	if outcome.BothAnswered {
		// Replaces the outstanding question timer with the short UX pause.
		// Arming against the answered question's index keeps a limit timer
		// that fired in the meantime from being displaced: if the room has
		// already advanced, armTimer drops this arm instead.
		code := p.RoomID
		g.armTimer(code, outcome.QuestionIndex, g.cfg.QuestionPause, func() { g.advance(code) })
	}
}

// beginMatch fires when the countdown elapses: the room goes live and both
// players receive the first question.
func (g *Gateway) beginMatch(code string) {
	view, total, err := g.service.BeginFirstQuestion(code)
	if err != nil {
		// A disconnect during the countdown already ended the room.
		g.log.Debug().Err(err).Str("room", code).Msg("countdown fired on dead room")
		return
	}

	g.broadcast(code, nil, outboundMessage[questionPayload]{
		Type: "questionStart",
		Payload: questionPayload{
			Question:  view,
			Number:    1,
			Total:     total,
			TimeLimit: int(g.cfg.QuestionTimeLimit / time.Second),
		},
	})
	g.armTimer(code, 0, g.cfg.QuestionTimeLimit, func() { g.advance(code) })
}

// advance moves the room to the next question or finishes the match. It
// runs from the per-question timer, or from the pause timer after both
// players answered early.
func (g *Gateway) advance(code string) {
	outcome, err := g.service.Advance(code)
	if err != nil {
		g.log.Debug().Err(err).Str("room", code).Msg("advance on dead room")
		return
	}

	if outcome.Finished {
		g.cancelTimer(code)
		g.broadcast(code, nil, outboundMessage[matchFinishedPayload]{
			Type: "matchFinished",
			Payload: matchFinishedPayload{
				Winner:      outcome.Result.Winner,
				Draw:        outcome.Result.Draw,
				FinalScores: outcome.Result.FinalScores,
			},
		})
		g.report(*outcome.Result)
		g.unbindRoom(code)
		return
	}

	g.broadcast(code, nil, outboundMessage[questionPayload]{
		Type: "nextQuestion",
		Payload: questionPayload{
			Question:  outcome.Question,
			Number:    outcome.Number,
			Total:     outcome.Total,
			TimeLimit: int(g.cfg.QuestionTimeLimit / time.Second),
		},
	})
	g.armTimer(code, outcome.Number-1, g.cfg.QuestionTimeLimit, func() { g.advance(code) })
}

// handleDisconnect runs when a connection's read loop ends.
func (g *Gateway) handleDisconnect(c *client) {
	code := g.clientRoom(c)
	if code == "" {
		return
	}
	g.unbind(c)

	outcome := g.service.Disconnect(code, c.sessionID)
	if !outcome.Handled {
		return
	}

	switch {
	case outcome.Forfeit != nil:
		g.cancelTimer(code)
		g.broadcast(code, nil, outboundMessage[opponentDisconnectedPayload]{
			Type: "opponentDisconnected",
			Payload: opponentDisconnectedPayload{
				Message:     "your opponent disconnected; you win by forfeit",
				Winner:      outcome.Forfeit.Winner,
				FinalScores: outcome.Forfeit.FinalScores,
			},
		})
		g.report(*outcome.Forfeit)
		g.unbindRoom(code)
	case outcome.PriorStatus == domain.StatusWaiting && !outcome.RoomRemoved:
		g.broadcast(code, nil, outboundMessage[scoreUpdatePayload]{
			Type:    "scoreUpdate",
			Payload: scoreUpdatePayload{Participants: outcome.Snapshot.Participants},
		})
	}
}

// report hands each player's result to the match reporter. Failures are
// logged; finish delivery never waits on the reporter.
func (g *Gateway) report(result domain.MatchResult) {
	for _, player := range result.PlayerResults(app.MatchMode) {
		player := player
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := g.reporter.Report(ctx, player); err != nil {
				g.log.Error().Err(err).Str("user", player.Username).Msg("match report failed")
			}
		}()
	}
}

func (g *Gateway) clientRoom(c *client) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return c.room
}

func (g *Gateway) bind(c *client, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c.room = code
	group, ok := g.rooms[code]
	if !ok {
		group = make(map[*client]bool)
		g.rooms[code] = group
	}
	group[c] = true
}

func (g *Gateway) unbind(c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if group, ok := g.rooms[c.room]; ok {
		delete(group, c)
		if len(group) == 0 {
			delete(g.rooms, c.room)
		}
	}
	c.room = ""
}

// unbindRoom releases every connection bound to a room, so the sockets can
// create or join fresh rooms afterwards.
func (g *Gateway) unbindRoom(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for c := range g.rooms[code] {
		c.room = ""
	}
	delete(g.rooms, code)
}

func (g *Gateway) sendError(c *client, message string) {
	g.sendTo(c, outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: message}})
}

func (g *Gateway) sendTo(c *client, msg any) {
	raw, err := json.Marshal(msg)
	if err != nil {
		g.log.Error().Err(err).Msg("marshal outbound message")
		return
	}

	// Checked and pushed under the lock so a concurrent close of the send
	// channel cannot slip between the two.
	g.mu.Lock()
	defer g.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- raw:
	default:
		g.log.Warn().Str("session", c.sessionID).Msg("dropping message for slow client")
	}
}

// broadcast fans a message out to every connection bound to the room,
// optionally excluding one.
func (g *Gateway) broadcast(code string, except *client, msg any) {
	g.mu.Lock()
	targets := make([]*client, 0, len(g.rooms[code]))
	for c := range g.rooms[code] {
		if c != except {
			targets = append(targets, c)
		}
	}
	g.mu.Unlock()

	for _, c := range targets {
		g.sendTo(c, msg)
	}
}

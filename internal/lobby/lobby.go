package lobby

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/greenwinther/guess-the-song2/internal/engine"
	"github.com/greenwinther/guess-the-song2/internal/snapshot"
)

type Msg interface{ isLobbyMsg() }

// Do applies one action on behalf of MemberID ("" before a join).
type Do struct {
	MemberID string
	Action   engine.Action
	Reply    chan Result // may be nil
}

func (Do) isLobbyMsg() {}

type Result struct {
	Outcome engine.Outcome
	Err     error
}

// Subscribe registers an outbox and immediately sends it the current view for MemberID.
// Subscribing an existing ClientID rebinds it.
type Subscribe struct {
	ClientID string
	MemberID string
	Outbox   chan Event
}

func (Subscribe) isLobbyMsg() {}

type Unsubscribe struct{ ClientID string }

func (Unsubscribe) isLobbyMsg() {}

// Export serializes the room inside the loop, so no action interleaves with it.
type Export struct {
	Reply chan ExportResult
}

func (Export) isLobbyMsg() {}

type ExportResult struct {
	Record snapshot.Record
	Err    error
}

// Expire shuts the lobby down if the room expired before Now and replies whether it did.
type Expire struct {
	Now   time.Time
	Reply chan bool
}

func (Expire) isLobbyMsg() {}

type GetState struct {
	ViewerID string
	Reply    chan View
}

func (GetState) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

const (
	EventRoomUpdate  = "room:update"
	EventScoreUpdate = "score:update"
	EventClosed      = "room:closed"
)

// Event is pushed to subscribers. Room is always projected for the receiving member.
type Event struct {
	Type    string             `json:"type"`
	Version int                `json:"version"`
	Room    *engine.PublicRoom `json:"room,omitempty"`
	Scores  *engine.ScoreBoard `json:"scores,omitempty"`
}

type View struct {
	Version    int
	NumClients int
	Room       engine.PublicRoom
}

type Options struct {
	TTL      time.Duration
	SavedTTL time.Duration
	Now      func() time.Time
	Logger   *zap.Logger
}

type subscriber struct {
	memberID string
	outbox   chan Event
}

type Lobby struct {
	inbox   chan Msg
	room    *engine.Room
	version int
	clients map[string]subscriber
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewLobby starts the goroutine that owns room. Nothing else may touch room afterwards.
func NewLobby(parent context.Context, room *engine.Room, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	l := &Lobby{
		inbox:   make(chan Msg, 64),
		room:    room,
		clients: make(map[string]subscriber),
		opts:    opts,
		log:     opts.Logger.With(zap.String("code", room.Code)),
		ctx:     ctx,
		cancel:  cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.room.Code }

// Done is closed once the lobby stopped.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

func (l *Lobby) Closed() bool { return l.ctx.Err() != nil }

// Expose the inbox so tests or the ws layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Do:
				res := l.apply(msg.MemberID, msg.Action)
				if msg.Reply != nil {
					msg.Reply <- res
				}

			case Subscribe:
				l.clients[msg.ClientID] = subscriber{memberID: msg.MemberID, outbox: msg.Outbox}
				view := engine.Project(l.room, msg.MemberID)
				l.deliver(msg.ClientID, Event{Type: EventRoomUpdate, Version: l.version, Room: &view})

			case Unsubscribe:
				delete(l.clients, msg.ClientID)

			case Export:
				rec, err := snapshot.Capture(l.room)
				msg.Reply <- ExportResult{Record: rec, Err: err}

			case Expire:
				expired := l.room.Expired(msg.Now.UnixMilli())
				msg.Reply <- expired
				if expired {
					l.log.Info("room expired")
					l.shutdown()
					return
				}

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					Room:       engine.Project(l.room, msg.ViewerID),
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) apply(memberID string, a engine.Action) Result {
	env := engine.Env{
		Now:      l.opts.Now().UnixMilli(),
		TTL:      l.opts.TTL,
		SavedTTL: l.opts.SavedTTL,
	}
	out, err := engine.Apply(l.room, env, memberID, a)
	if err != nil {
		if code, _ := engine.CodeOf(err); code == engine.ErrInternal {
			l.log.Error("action failed", zap.String("member", memberID), zap.String("action", actionName(a)), zap.Error(err))
		} else {
			l.log.Debug("action rejected", zap.String("member", memberID), zap.String("action", actionName(a)), zap.Error(err))
		}
		return Result{Err: err}
	}

	if out.Changed {
		l.version++
		l.broadcastRoom()
	}
	if out.Scores != nil {
		l.broadcast(Event{Type: EventScoreUpdate, Version: l.version, Scores: out.Scores})
	}
	return Result{Outcome: out}
}

func (l *Lobby) shutdown() {
	for id, c := range l.clients {
		select {
		case c.outbox <- Event{Type: EventClosed, Version: l.version}:
		default:
		}
		close(c.outbox) // Tell client no more events
		delete(l.clients, id)
	}
	l.cancel()
}

// broadcastRoom sends every subscriber its own projection.
func (l *Lobby) broadcastRoom() {
	for id, c := range l.clients {
		view := engine.Project(l.room, c.memberID)
		l.deliver(id, Event{Type: EventRoomUpdate, Version: l.version, Room: &view})
	}
}

func (l *Lobby) broadcast(ev Event) {
	for id := range l.clients {
		l.deliver(id, ev)
	}
}

func (l *Lobby) deliver(clientID string, ev Event) {
	c, ok := l.clients[clientID]
	if !ok {
		return
	}
	select {
	case c.outbox <- ev:
		//ok
	default:
		// Client is slow/full - drop them.
		l.log.Warn("dropping slow subscriber", zap.String("client", clientID), zap.String("member", c.memberID))
		close(c.outbox)
		delete(l.clients, clientID)
	}
}

func actionName(a engine.Action) string {
	if a == nil {
		return ""
	}
	return a.Kind()
}

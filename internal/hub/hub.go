// Package hub is the room registry. One goroutine owns the code -> lobby table;
// each lobby in turn owns its room.
package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/greenwinther/guess-the-song2/internal/engine"
	"github.com/greenwinther/guess-the-song2/internal/ids"
	"github.com/greenwinther/guess-the-song2/internal/lobby"
)

// maxCodeAttempts bounds the search for a free generated code.
const maxCodeAttempts = 32

type HubMsg interface{ isHubMsg() }

// CreateLobby makes a new room. An empty Code asks for a generated one.
type CreateLobby struct {
	Code  string
	Reply chan CreateResult
}

type CreateResult struct {
	Lobby   *lobby.Lobby
	HostKey string // only set when the room was created by this call
	Created bool
	Err     error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby // nil when absent
}

// EnsureLobby returns the live room for Code, creating it when absent.
type EnsureLobby struct {
	Code  string
	Reply chan CreateResult
}

// ReviveLobby installs a room rebuilt from a snapshot, skipping creation rules.
type ReviveLobby struct {
	Room  *engine.Room
	Reply chan error
}

type ListLobbies struct {
	Reply chan []*lobby.Lobby
}

// RemoveLobby drops Code only while it still maps to Lobby (nil matches any).
type RemoveLobby struct {
	Code  string
	Lobby *lobby.Lobby
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (EnsureLobby) isHubMsg() {}
func (ReviveLobby) isHubMsg() {}
func (ListLobbies) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Options struct {
	RoomTTL  time.Duration
	SavedTTL time.Duration
	Now      func() time.Time
	Logger   *zap.Logger
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.RoomTTL <= 0 {
		opts.RoomTTL = engine.DefaultTTL
	}
	if opts.SavedTTL <= 0 {
		opts.SavedTTL = engine.DefaultSavedTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		opts:    opts,
		log:     opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.create(msg.Code)

			case GetLobby:
				msg.Reply <- h.live(ids.NormalizeCode(msg.Code)) // May be nil

			case EnsureLobby:
				code := ids.NormalizeCode(msg.Code)
				if lb := h.live(code); lb != nil {
					msg.Reply <- CreateResult{Lobby: lb}
					break
				}
				msg.Reply <- h.create(code)

			case ReviveLobby:
				msg.Reply <- h.revive(msg.Room)

			case ListLobbies:
				out := make([]*lobby.Lobby, 0, len(h.lobbies))
				for code := range h.lobbies {
					if lb := h.live(code); lb != nil {
						out = append(out, lb)
					}
				}
				msg.Reply <- out

			case RemoveLobby:
				code := ids.NormalizeCode(msg.Code)
				if lb, ok := h.lobbies[code]; ok && (msg.Lobby == nil || msg.Lobby == lb) {
					delete(h.lobbies, code)
					lb.Close()
					h.log.Info("room removed", zap.String("code", code))
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

// live returns the lobby for code, forgetting it if it already stopped.
func (h *Hub) live(code string) *lobby.Lobby {
	lb, ok := h.lobbies[code]
	if !ok {
		return nil
	}
	if lb.Closed() {
		delete(h.lobbies, code)
		return nil
	}
	return lb
}

func (h *Hub) create(code string) CreateResult {
	code = ids.NormalizeCode(code)
	if code == "" {
		generated, err := h.freeCode()
		if err != nil {
			return CreateResult{Err: err}
		}
		code = generated
	}
	if !ids.ValidRoomCode(code) {
		return CreateResult{Err: engine.ErrInvalidCode}
	}
	if h.live(code) != nil {
		return CreateResult{Err: engine.ErrRoomExists}
	}

	hostKey, err := ids.NewHostKey()
	if err != nil {
		return CreateResult{Err: err}
	}
	room := engine.NewRoom(code, hostKey, h.opts.Now().UnixMilli(), h.opts.RoomTTL)
	lb := lobby.NewLobby(h.ctx, room, h.lobbyOptions())
	h.lobbies[code] = lb
	h.log.Info("room created", zap.String("code", code))
	return CreateResult{Lobby: lb, HostKey: hostKey, Created: true}
}

func (h *Hub) freeCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := ids.NewRoomCode()
		if err != nil {
			return "", err
		}
		if h.live(code) == nil {
			return code, nil
		}
		h.log.Debug("collision on code, regenerating", zap.String("code", code))
	}
	return "", engine.ErrRoomExists
}

func (h *Hub) revive(room *engine.Room) error {
	if room == nil {
		return engine.ErrInvalidCode
	}
	code := ids.NormalizeCode(room.Code)
	if h.live(code) != nil {
		return engine.ErrRoomExists
	}
	room.Code = code
	h.lobbies[code] = lobby.NewLobby(h.ctx, room, h.lobbyOptions())
	return nil
}

func (h *Hub) lobbyOptions() lobby.Options {
	return lobby.Options{
		TTL:      h.opts.RoomTTL,
		SavedTTL: h.opts.SavedTTL,
		Now:      h.opts.Now,
		Logger:   h.log,
	}
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Close()
	}
	clear(h.lobbies)
	h.cancel()
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/greenwinther/guess-the-song2/internal/engine"
	"github.com/greenwinther/guess-the-song2/internal/hub"
	"github.com/greenwinther/guess-the-song2/internal/ids"
	"github.com/greenwinther/guess-the-song2/internal/lobby"
	"github.com/greenwinther/guess-the-song2/internal/types"
)

const (
	writeTimeout   = 3 * time.Second
	cleanupTimeout = 5 * time.Second
	readLimit      = 64 << 10
	outboxSize     = 16
)

type Options struct {
	RatePerSec     float64
	Burst          int
	IdleTimeout    time.Duration
	OriginPatterns []string
	Logger         *zap.Logger
}

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			opts.Logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(readLimit)

		clientID := ids.NewMemberID()
		s := &session{
			hub:      h,
			conn:     conn,
			clientID: clientID,
			limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
			log:      opts.Logger.With(zap.String("client", clientID)),
		}
		defer s.unbind(true)

		s.readLoop(r.Context(), opts.IdleTimeout)
	}
}

// binding ties the socket to one member of one room.
type binding struct {
	lobby    *lobby.Lobby
	memberID string
	cancel   context.CancelFunc
}

type session struct {
	hub      *hub.Hub
	conn     *websocket.Conn
	clientID string
	limiter  *rate.Limiter
	log      *zap.Logger

	mu    sync.Mutex
	bound *binding
}

func (s *session) readLoop(ctx context.Context, idle time.Duration) {
	for {
		readCtx, cancel := context.WithTimeout(ctx, idle)
		_, data, err := s.conn.Read(readCtx)
		cancel()
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				s.log.Debug("read ended", zap.Error(err))
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			s.reply(ctx, cm, types.Fail(&engine.DetailedError{Code: engine.ErrBadPayload, Details: map[string]any{"reason": "bad json"}}))
			continue
		}
		if !s.limiter.Allow() {
			s.reply(ctx, cm, &types.Ack{Error: types.ErrRateLimited})
			continue
		}
		s.reply(ctx, cm, s.handle(ctx, cm))
	}
}

func (s *session) handle(ctx context.Context, cm types.ClientMessage) *types.Ack {
	switch cm.Type {
	case actionCreate:
		var p createPayload
		if err := unmarshalPayload(cm.Payload, &p); err != nil {
			return types.Fail(err)
		}
		lb, hostKey, err := s.hub.Create(ctx, p.Code)
		if err != nil {
			return s.fail(actionCreate, err)
		}
		view, err := lb.State(ctx, "")
		if err != nil {
			return s.fail(actionCreate, err)
		}
		return types.OK(map[string]any{"code": lb.Code(), "hostKey": hostKey, "room": view.Room})

	case actionJoin:
		return s.join(ctx, cm.Payload)

	case actionLeave:
		b := s.current()
		if b == nil {
			return types.Fail(engine.ErrNoRoom)
		}
		s.unbind(true)
		return types.OK(nil)
	}

	action, err := toEngineAction(cm.Type, cm.Payload)
	if err != nil {
		return types.Fail(err)
	}
	b := s.current()
	if b == nil {
		return types.Fail(engine.ErrNoRoom)
	}
	out, err := b.lobby.Do(ctx, b.memberID, action)
	if errors.Is(err, engine.ErrNoRoom) {
		s.unbind(false)
	}
	if err != nil {
		return s.fail(cm.Type, err)
	}
	return types.OK(out.Reply)
}

func (s *session) join(ctx context.Context, raw json.RawMessage) *types.Ack {
	var p joinPayload
	if err := unmarshalPayload(raw, &p); err != nil {
		return types.Fail(err)
	}
	res, err := s.hub.Ensure(ctx, p.Code)
	if err != nil {
		return s.fail(actionJoin, err)
	}

	memberID := p.MemberID
	if b := s.current(); b != nil && b.lobby == res.Lobby && memberID == "" {
		memberID = b.memberID
	}
	out, err := res.Lobby.Do(ctx, "", engine.JoinRoom{Name: p.Name, MemberID: memberID})
	if err != nil {
		return s.fail(actionJoin, err)
	}

	if b := s.current(); b == nil || b.lobby != res.Lobby || b.memberID != out.MemberID {
		s.unbind(true)
		if err := s.bind(ctx, res.Lobby, out.MemberID); err != nil {
			return s.fail(actionJoin, err)
		}
	}

	extra := map[string]any{"code": res.Lobby.Code()}
	for k, v := range out.Reply {
		extra[k] = v
	}
	if res.Created {
		extra["hostKey"] = res.HostKey
	}
	return types.OK(extra)
}

func (s *session) bind(ctx context.Context, lb *lobby.Lobby, memberID string) error {
	out := make(chan lobby.Event, outboxSize)
	if err := lb.Subscribe(ctx, s.clientID, memberID, out); err != nil {
		return err
	}
	fctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.bound = &binding{lobby: lb, memberID: memberID, cancel: cancel}
	s.mu.Unlock()

	go s.forward(fctx, lb, out)
	s.log.Debug("bound", zap.String("code", lb.Code()), zap.String("member", memberID))
	return nil
}

// unbind detaches from the current room. disconnect also marks the member gone.
func (s *session) unbind(disconnect bool) {
	s.mu.Lock()
	b := s.bound
	s.bound = nil
	s.mu.Unlock()
	if b == nil {
		return
	}
	b.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	_ = b.lobby.Unsubscribe(ctx, s.clientID)
	if disconnect {
		if _, err := b.lobby.Do(ctx, b.memberID, engine.Disconnect{}); err != nil && !errors.Is(err, engine.ErrNoRoom) {
			s.log.Debug("disconnect failed", zap.String("member", b.memberID), zap.Error(err))
		}
	}
}

func (s *session) current() *binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// forward pushes lobby events to the socket until the binding ends. A closed
// outbox on a live binding means the lobby dropped us for being slow.
func (s *session) forward(ctx context.Context, lb *lobby.Lobby, out <-chan lobby.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-out:
			if !ok {
				if ctx.Err() == nil && !lb.Closed() {
					s.log.Warn("subscriber dropped by room", zap.String("code", lb.Code()))
					s.conn.Close(websocket.StatusTryAgainLater, "fell behind")
				}
				return
			}
			msg := types.ServerMessage{Type: ev.Type, Version: ev.Version, Room: ev.Room, Scores: ev.Scores}
			if err := s.write(ctx, msg); err != nil {
				s.log.Debug("write failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *session) reply(ctx context.Context, cm types.ClientMessage, ack *types.Ack) {
	msg := types.ServerMessage{Type: types.TypeAck, ReqID: cm.ReqID, Action: cm.Type, Ack: ack}
	if err := s.write(ctx, msg); err != nil {
		s.log.Debug("ack write failed", zap.Error(err))
	}
}

func (s *session) write(ctx context.Context, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, payload)
}

func (s *session) fail(action string, err error) *types.Ack {
	if code, _ := engine.CodeOf(err); code == engine.ErrInternal {
		s.log.Error("action failed", zap.String("action", action), zap.Error(err))
	}
	return types.Fail(err)
}

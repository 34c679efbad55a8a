package hub

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/greenwinther/guess-the-song2/internal/engine"
	"github.com/greenwinther/guess-the-song2/internal/lobby"
	"github.com/greenwinther/guess-the-song2/internal/snapshot"
)

// fanOut caps how many lobbies GC and Snapshot talk to at once.
const fanOut = 16

var ErrHubClosed = errors.New("hub closed")

// Create makes a room. Pass "" to get a generated code. The host key is only
// ever handed out here.
func (h *Hub) Create(ctx context.Context, code string) (*lobby.Lobby, string, error) {
	reply := make(chan CreateResult, 1)
	if err := h.send(ctx, CreateLobby{Code: code, Reply: reply}); err != nil {
		return nil, "", err
	}
	res, err := recv(ctx, h, reply)
	if err != nil {
		return nil, "", err
	}
	return res.Lobby, res.HostKey, res.Err
}

// Get returns the live lobby for code, or nil.
func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	return recv(ctx, h, reply)
}

// Ensure returns the room for code, creating it on first use.
func (h *Hub) Ensure(ctx context.Context, code string) (CreateResult, error) {
	reply := make(chan CreateResult, 1)
	if err := h.send(ctx, EnsureLobby{Code: code, Reply: reply}); err != nil {
		return CreateResult{}, err
	}
	res, err := recv(ctx, h, reply)
	if err != nil {
		return CreateResult{}, err
	}
	return res, res.Err
}

func (h *Hub) Revive(ctx context.Context, room *engine.Room) error {
	reply := make(chan error, 1)
	if err := h.send(ctx, ReviveLobby{Room: room, Reply: reply}); err != nil {
		return err
	}
	err, recvErr := recv(ctx, h, reply)
	if recvErr != nil {
		return recvErr
	}
	return err
}

func (h *Hub) List(ctx context.Context) ([]*lobby.Lobby, error) {
	reply := make(chan []*lobby.Lobby, 1)
	if err := h.send(ctx, ListLobbies{Reply: reply}); err != nil {
		return nil, err
	}
	return recv(ctx, h, reply)
}

func (h *Hub) Remove(ctx context.Context, code string, lb *lobby.Lobby) error {
	return h.send(ctx, RemoveLobby{Code: code, Lobby: lb})
}

// GC drops every room that expired before now and returns how many went.
// Expiry is checked inside each lobby's loop, against its current state.
func (h *Hub) GC(ctx context.Context, now time.Time) (int, error) {
	lobbies, err := h.List(ctx)
	if err != nil {
		return 0, err
	}

	var removed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for _, lb := range lobbies {
		lb := lb
		g.Go(func() error {
			expired, err := lb.Expire(gctx, now)
			if err != nil {
				return err
			}
			if !expired {
				return nil
			}
			removed.Add(1)
			return h.Remove(gctx, lb.Code(), lb)
		})
	}
	if err := g.Wait(); err != nil {
		return int(removed.Load()), err
	}
	if n := removed.Load(); n > 0 {
		h.log.Info("gc removed rooms", zap.Int64("removed", n))
	}
	return int(removed.Load()), nil
}

// Snapshot exports every live room, ordered by code. Rooms that stop while the
// export runs are skipped.
func (h *Hub) Snapshot(ctx context.Context) ([]snapshot.Record, error) {
	lobbies, err := h.List(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	records := make([]snapshot.Record, 0, len(lobbies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for _, lb := range lobbies {
		lb := lb
		g.Go(func() error {
			rec, err := lb.Export(gctx)
			if errors.Is(err, engine.ErrNoRoom) {
				return nil
			}
			if err != nil {
				h.log.Error("export room", zap.String("code", lb.Code()), zap.Error(err))
				return nil
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Code < records[j].Code })
	return records, nil
}

func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recv[T any](ctx context.Context, h *Hub, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-h.ctx.Done():
		return zero, ErrHubClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/greenwinther/guess-the-song2/internal/engine"
	"github.com/greenwinther/guess-the-song2/internal/snapshot"
)

// Do applies a on behalf of memberID and waits for the outcome. A lobby that
// stopped reports engine.ErrNoRoom.
func (l *Lobby) Do(ctx context.Context, memberID string, a engine.Action) (engine.Outcome, error) {
	reply := make(chan Result, 1)
	if err := l.send(ctx, Do{MemberID: memberID, Action: a, Reply: reply}); err != nil {
		return engine.Outcome{}, err
	}
	res, err := await(ctx, l, reply)
	if err != nil {
		return engine.Outcome{}, err
	}
	return res.Outcome, res.Err
}

func (l *Lobby) Subscribe(ctx context.Context, clientID, memberID string, outbox chan Event) error {
	return l.send(ctx, Subscribe{ClientID: clientID, MemberID: memberID, Outbox: outbox})
}

func (l *Lobby) Unsubscribe(ctx context.Context, clientID string) error {
	return l.send(ctx, Unsubscribe{ClientID: clientID})
}

func (l *Lobby) Export(ctx context.Context) (snapshot.Record, error) {
	reply := make(chan ExportResult, 1)
	if err := l.send(ctx, Export{Reply: reply}); err != nil {
		return snapshot.Record{}, err
	}
	res, err := await(ctx, l, reply)
	if err != nil {
		return snapshot.Record{}, err
	}
	return res.Record, res.Err
}

// Expire stops the lobby when its room expired before now and reports whether it did.
// A lobby that is already stopped counts as expired.
func (l *Lobby) Expire(ctx context.Context, now time.Time) (bool, error) {
	reply := make(chan bool, 1)
	if err := l.send(ctx, Expire{Now: now, Reply: reply}); err != nil {
		if errors.Is(err, engine.ErrNoRoom) {
			return true, nil
		}
		return false, err
	}
	expired, err := await(ctx, l, reply)
	if errors.Is(err, engine.ErrNoRoom) {
		return true, nil
	}
	return expired, err
}

// State returns viewerID's projection plus bookkeeping.
func (l *Lobby) State(ctx context.Context, viewerID string) (View, error) {
	reply := make(chan View, 1)
	if err := l.send(ctx, GetState{ViewerID: viewerID, Reply: reply}); err != nil {
		return View{}, err
	}
	return await(ctx, l, reply)
}

func (l *Lobby) Close() {
	select {
	case l.inbox <- Shutdown{}:
	case <-l.ctx.Done():
	}
}

func (l *Lobby) send(ctx context.Context, m Msg) error {
	if l.Closed() {
		return engine.ErrNoRoom
	}
	select {
	case l.inbox <- m:
		return nil
	case <-l.ctx.Done():
		return engine.ErrNoRoom
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await prefers a reply that raced with the lobby stopping.
func await[T any](ctx context.Context, l *Lobby, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-l.ctx.Done():
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, engine.ErrNoRoom
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

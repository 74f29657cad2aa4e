// internal/websocket/feed.go
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

// Feed keeps a connection to the backend telemetry socket open and hands
// every frame to OnFrame. Connection transitions are reported via OnStatus:
// connecting before each dial, online once open, offline after a close or
// failed dial.
type Feed struct {
	URL        string
	Dialer     *websocket.Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration
	OnFrame    func(ctx context.Context, raw []byte)
	OnStatus   func(ctx context.Context, status telemetry.ConnectionStatus)
	Log        *slog.Logger
}

// Run dials and reads until ctx is cancelled, reconnecting with capped
// exponential backoff.
func (f *Feed) Run(ctx context.Context) error {
	if f.URL == "" {
		return errors.New("feed: no url")
	}
	dialer := f.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	log := f.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "feed"), slog.String("url", f.URL))

	backoff := f.MinBackoff
	for {
		f.status(ctx, telemetry.StatusConnecting)
		conn, _, err := dialer.DialContext(ctx, f.URL, nil)
		if err == nil {
			backoff = f.MinBackoff
			f.status(ctx, telemetry.StatusOnline)
			log.Info("feed connected")
			err = f.read(ctx, conn)
		}
		f.status(ctx, telemetry.StatusOffline)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("feed disconnected", slog.Any("error", err), slog.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = f.next(backoff)
	}
}

func (f *Feed) read(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if f.OnFrame != nil {
			f.OnFrame(ctx, msg)
		}
	}
}

func (f *Feed) status(ctx context.Context, s telemetry.ConnectionStatus) {
	if f.OnStatus != nil {
		f.OnStatus(ctx, s)
	}
}

func (f *Feed) next(cur time.Duration) time.Duration {
	if cur <= 0 {
		cur = time.Second
	}
	cur *= 2
	if f.MaxBackoff > 0 && cur > f.MaxBackoff {
		cur = f.MaxBackoff
	}
	return cur
}

package binance

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/0xtitan6/cryptoconnect/internal/config"
	"github.com/0xtitan6/cryptoconnect/internal/errs"
	"github.com/0xtitan6/cryptoconnect/internal/wsclient"
)

const listenKeyKeepaliveInterval = 30 * time.Minute

// userStream manages a Binance user-data-stream listen key (obtain, keep
// alive every 30 minutes, close on shutdown) plus the WebSocket session
// subscribed to it. Grounded on the listen-key lifecycle in
// original_source/exchange/src/binance/spot/trade_stream.rs.
type userStream struct {
	cfg     *config.MarketConfig
	rest    *RESTClient
	handler wsclient.Handler
	logger  *slog.Logger

	session *wsclient.Session
	cancel  context.CancelFunc
}

func newUserStream(cfg *config.MarketConfig, rest *RESTClient, handler wsclient.Handler, logger *slog.Logger) *userStream {
	return &userStream{cfg: cfg, rest: rest, handler: handler, logger: logger}
}

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

func (u *userStream) obtainListenKey(ctx context.Context) (string, error) {
	const op = "binance.userStream.obtainListenKey"
	var out listenKeyResponse
	if err := u.rest.SignedRequest(ctx, "POST", "/api/v3/userDataStream", url.Values{}, 1, &out); err != nil {
		return "", errs.Network(op, err, "create listen key")
	}
	return out.ListenKey, nil
}

func (u *userStream) keepalive(ctx context.Context, listenKey string) error {
	const op = "binance.userStream.keepalive"
	params := url.Values{"listenKey": {listenKey}}
	if err := u.rest.SignedRequest(ctx, "PUT", "/api/v3/userDataStream", params, 1, nil); err != nil {
		return errs.Network(op, err, "keepalive listen key")
	}
	return nil
}

// start obtains a listen key, opens the WebSocket session on it, and
// launches the 30-minute keepalive loop. Blocks only long enough to
// establish the initial listen key; the session and keepalive loop run in
// background goroutines bound to ctx.
func (u *userStream) start(ctx context.Context) error {
	listenKey, err := u.obtainListenKey(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel

	u.session = wsclient.New(u.cfg.StreamBaseURL+"/ws/"+listenKey, wsclient.ExtractJSONID, u.handler, u.logger)

	go func() {
		if err := u.session.Run(runCtx); err != nil && runCtx.Err() == nil {
			u.logger.Error("user data stream terminated", "error", err)
		}
	}()

	go u.keepaliveLoop(runCtx, listenKey)

	return nil
}

func (u *userStream) keepaliveLoop(ctx context.Context, listenKey string) {
	ticker := time.NewTicker(listenKeyKeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := u.keepalive(ctx, listenKey); err != nil {
				u.logger.Warn("listen key keepalive failed", "error", err)
			}
		}
	}
}

func (u *userStream) close() {
	if u.cancel != nil {
		u.cancel()
	}
	if u.session != nil {
		_ = u.session.Close()
	}
}

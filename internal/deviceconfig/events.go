package deviceconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/modbusreader/internal/logging"
	"github.com/muurk/modbusreader/internal/notify"
)

// EventsURL returns the websocket URL of the notification stream.
func (c *Client) EventsURL() (string, error) {
	u, err := url.Parse(c.BaseURL + PathEvents)
	if err != nil {
		return "", NewValidationError(fmt.Sprintf("invalid base URL %q: %v", c.BaseURL, err))
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}

// WatchNotifications subscribes to the service's notification stream and
// calls fn for every notification until ctx is cancelled or the stream ends.
// Notifications caused by this client's own requests are skipped: the caller
// already learned their outcome from the response. Cancellation returns nil.
func (c *Client) WatchNotifications(ctx context.Context, fn func(notify.Notification)) error {
	wsURL, err := c.EventsURL()
	if err != nil {
		return err
	}

	header := http.Header{}
	if c.Username != "" {
		req := &http.Request{Header: header}
		req.SetBasicAuth(c.Username, c.Password)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.HTTPClient.Timeout,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized {
				return NewAuthError("authentication failed (check credentials)")
			}
			return NewHTTPError(resp.StatusCode, fmt.Sprintf("websocket handshake failed: %s", resp.Status))
		}
		return NewNetworkError("failed to open notification stream", err)
	}
	defer func() { _ = conn.Close() }()

	logging.LogConnection(wsURL, "notification_stream_opened")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var n notify.Notification
		if err := conn.ReadJSON(&n); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if isDecodeError(err) {
				logging.Warn("Dropping malformed notification", zap.Error(err))
				continue
			}
			return NewNetworkError("notification stream closed", err)
		}
		if c.ID != "" && n.Origin == c.ID {
			logging.Debug("Skipping own notification", zap.String("message", n.Message))
			continue
		}
		fn(n)
	}
}

// isDecodeError reports a message that arrived intact but was not a
// notification. The connection is still usable after one.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

package api

import (
	"net/url"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"otr_messaging/internal/model"
	"otr_messaging/internal/utils/log"
)

// NotifySocket is a websocket side channel the backend pings whenever new
// events exist for this client. It only wakes the sync loop early; polling
// remains the source of truth, so a dropped ping costs latency, not data.
type NotifySocket struct {
	conn *websocket.Conn
	wake chan struct{}
}

// DialNotifySocket connects the notify channel for clientID.
func DialNotifySocket(host string, clientID model.ClientID) (*NotifySocket, error) {
	params := url.Values{
		"clientId": []string{string(clientID)},
	}
	u := url.URL{
		Scheme:   "ws",
		Host:     host,
		Path:     "/api/v1/notify",
		RawQuery: params.Encode(),
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	s := &NotifySocket{
		conn: conn,
		wake: make(chan struct{}, 1),
	}
	go s.readLoop()
	return s, nil
}

// Wake receives one signal per server ping. The channel is closed when the
// socket dies.
func (s *NotifySocket) Wake() <-chan struct{} {
	return s.wake
}

func (s *NotifySocket) Close() error {
	return s.conn.Close()
}

func (s *NotifySocket) readLoop() {
	defer close(s.wake)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			log.Debug("notify socket closed", zap.Error(err))
			s.conn.Close()
			return
		}
		select {
		case s.wake <- struct{}{}:
		default: // a wake-up is already pending
		}
	}
}

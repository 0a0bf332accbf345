package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Subscription receives project_updated events from the /ws endpoint.
type Subscription struct {
	conn   *websocket.Conn
	events chan ProjectUpdated

	writeMu sync.Mutex

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	done      chan struct{}
}

type subscriptionMessage struct {
	Action    string    `json:"action"`
	ProjectID uuid.UUID `json:"projectId"`
}

// Subscribe opens a websocket to the server at baseURL. With no project IDs
// the connection receives updates for every project.
func (c *Client) Subscribe(ctx context.Context, projectIDs ...uuid.UUID) (*Subscription, error) {
	u, err := websocketURL(c.baseURL, projectIDs)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.userID != uuid.Nil {
		header.Set("X-User-ID", c.userID.String())
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", u, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}

	s := &Subscription{
		conn:   conn,
		events: make(chan ProjectUpdated, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Events yields updates until the connection closes.
func (s *Subscription) Events() <-chan ProjectUpdated {
	return s.events
}

// Err returns the error that ended the read loop, nil after Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Watch adds a project to the subscription.
func (s *Subscription) Watch(projectID uuid.UUID) error {
	return s.send(subscriptionMessage{Action: "subscribe", ProjectID: projectID})
}

// Unwatch removes a project from the subscription.
func (s *Subscription) Unwatch(projectID uuid.UUID) error {
	return s.send(subscriptionMessage{Action: "unsubscribe", ProjectID: projectID})
}

// Feed applies every received update to cache until the subscription ends.
func (s *Subscription) Feed(cache *ProjectCache) {
	for ev := range s.events {
		cache.ApplyBroadcast(ev)
	}
}

// Close closes the connection.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *Subscription) send(msg subscriptionMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

func (s *Subscription) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.mu.Lock()
					s.err = err
					s.mu.Unlock()
				}
			}
			return
		}

		var ev ProjectUpdated
		if err := json.Unmarshal(data, &ev); err != nil || ev.ProjectID == uuid.Nil {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func websocketURL(baseURL string, projectIDs []uuid.UUID) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("base url must be http(s) or ws(s)")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	q := url.Values{}
	for _, id := range projectIDs {
		q.Add("project", id.String())
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/xhad/de5chat/pkg/assistant"
)

type Message struct {
	Type    string  `json:"type"`
	Content string  `json:"content"`
	UserID  *string `json:"user_id,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("error sending message: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &wsConn{conn: conn}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(Message{Type: "error", Content: "invalid message"})
			continue
		}
		if msg.Type != "chat" || msg.Content == "" {
			c.send(Message{Type: "error", Content: "expected a chat message with content"})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(r, c, msg)
		}()
	}
}

func (s *Server) handleMessage(r *http.Request, c *wsConn, msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[%s] panic handling websocket message: %v", RequestID(r.Context()), rec)
			c.send(Message{Type: "error", Content: "internal server error"})
		}
	}()

	result := s.assistant.Answer(r.Context(), assistant.Request{
		Message: msg.Content,
		UserID:  msg.UserID,
	}, assistant.WithStreaming(func(chunk string) {
		c.send(Message{Type: "stream", Content: chunk})
	}))

	c.send(Message{Type: "response", Content: result.Response, UserID: result.UserID})
}

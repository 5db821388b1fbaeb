package proxy

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shehryarbajwa/browserbase-fleet/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Sessions finds in-flight sessions by name
type Sessions interface {
	Lookup(name string) (orchestrator.InFlightSession, bool)
}

type Server struct {
	sessions    Sessions
	dialTimeout time.Duration
}

func NewServer(sessions Sessions) *Server {
	return &Server{
		sessions:    sessions,
		dialTimeout: 10 * time.Second,
	}
}

// HandleDebugConnection relays a client websocket to the DevTools endpoint of a running session
func (s *Server) HandleDebugConnection(w http.ResponseWriter, r *http.Request, name string) {
	sess, ok := s.sessions.Lookup(name)
	if !ok {
		http.Error(w, "Session not running", http.StatusNotFound)
		return
	}
	if sess.Endpoint == "" {
		http.Error(w, "Session has no debug endpoint", http.StatusConflict)
		return
	}

	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer clientConn.Close()

	log.Printf("✅ Client connected to session %s debug", name)

	ctx, cancel := context.WithTimeout(r.Context(), s.dialTimeout)
	defer cancel()

	browserConn, _, err := websocket.DefaultDialer.DialContext(ctx, sess.Endpoint, nil)
	if err != nil {
		log.Printf("❌ Failed to connect to browser: %v", err)
		clientConn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("Error connecting: %v", err)))
		return
	}
	defer browserConn.Close()

	errChan := make(chan error, 2)

	go func() {
		errChan <- relay(clientConn, browserConn, "client→browser")
	}()

	go func() {
		errChan <- relay(browserConn, clientConn, "browser→client")
	}()

	err = <-errChan
	if err != nil && err != io.EOF && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Printf("Proxy error for session %s: %v", name, err)
	}

	log.Printf("Client disconnected from session %s debug", name)
}

func relay(src, dst *websocket.Conn, direction string) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error (%s): %v", direction, err)
			}
			return err
		}

		if err := dst.WriteMessage(messageType, message); err != nil {
			log.Printf("Failed to write message (%s): %v", direction, err)
			return err
		}
	}
}

package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/trainbox/trainbox/internal/executor"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now; tighten in production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// executeScript upgrades the connection and hands it to an orchestrator for
// the whole session lifetime.
func (s *Server) executeScript(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	var recorder executor.RunRecorder
	if s.history != nil {
		recorder = s.history
	}

	orch := executor.NewOrchestrator(s.registry, s.pipelineLog, recorder, s.pythonBin, &wsChannel{conn: ws})
	log.Printf("trainbox: execution session %s connected from %s", orch.SessionID(), c.RealIP())
	orch.Run()
	log.Printf("trainbox: execution session %s closed", orch.SessionID())
	return nil
}

// wsChannel adapts a gorilla websocket connection to the executor's Channel.
// The orchestrator is the only writer and runs its own reader goroutine, which
// matches gorilla's one-reader/one-writer rule.
type wsChannel struct {
	conn *websocket.Conn
}

func (w *wsChannel) ReadMessage() (string, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (w *wsChannel) WriteMessage(text string) error {
	return w.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (w *wsChannel) Close() error {
	// Best-effort close handshake so the peer can flush remaining output.
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}

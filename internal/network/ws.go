package network

import (
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// upgrader armazena as configurações para promover uma conexão HTTP para
// WebSocket. CheckOrigin liberado: o gateway é pensado para rede interna.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsFrameConn adapta uma conexão websocket para a interface FrameConn:
// cada mensagem de texto é um frame do protocolo.
type wsFrameConn struct {
	conn *websocket.Conn
}

func (w *wsFrameConn) ReadFrame() (string, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (w *wsFrameConn) WriteFrame(frame string) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (w *wsFrameConn) Close() error         { return w.conn.Close() }
func (w *wsFrameConn) RemoteAddr() net.Addr { return w.conn.RemoteAddr() }

// wsHandler promove a requisição HTTP e entrega o cliente ao mesmo
// SessionHandler do listener TCP: o protocolo é idêntico nos dois
// transportes.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] erro ao fazer upgrade da conexão: %v", err)
		return
	}

	client := NewClient(&wsFrameConn{conn: conn})
	client.Start()
	go s.handler.HandleClient(client)
}

// ListenWebSocket expõe o gateway websocket opcional em /ws.
func (s *Server) ListenWebSocket(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.wsHandler)
	log.Printf("[Server] gateway websocket em ws://%s/ws", addr)
	return http.ListenAndServe(addr, mux)
}

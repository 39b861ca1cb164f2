package network

import (
	"log"
	"net"
)

// SessionHandler é o ponto de injeção da lógica do jogo: o servidor entrega
// cada conexão aceita para um handler, que roda em sua própria goroutine.
type SessionHandler interface {
	// HandleClient conduz a máquina de estados de um jogador do início ao
	// fim. Quando retorna, a conexão já deve ter sido encerrada.
	HandleClient(c *Client)
}

// Server aceita conexões TCP e as transforma em Clients.
type Server struct {
	handler SessionHandler
}

func NewServer(handler SessionHandler) *Server {
	return &Server{handler: handler}
}

// Listen abre o listener TCP no endereço dado e serve para sempre.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("[Server] escutando em %s", ln.Addr())
	return s.Serve(ln)
}

// Serve roda o loop de accept sobre um listener já aberto.
// Separado de Listen para os testes poderem escolher a porta.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		log.Printf("[Server] conectado a %s", conn.RemoteAddr())

		client := NewClient(newTCPFrameConn(conn))
		client.Start()
		go s.handler.HandleClient(client)
	}
}

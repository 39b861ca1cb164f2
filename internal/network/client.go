package network

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// Tempo para aguardar por uma escrita na conexão.
	writeWait = 10 * time.Second

	// Tamanho do buffer de mensagens de saída de cada cliente.
	sendBufferSize = 256
)

// FrameConn abstrai uma conexão capaz de transportar frames de texto.
// A implementação principal é TCP puro; o gateway websocket fornece outra.
type FrameConn interface {
	// ReadFrame bloqueia até o próximo frame chegar ou a conexão cair.
	ReadFrame() (string, error)
	WriteFrame(frame string) error
	Close() error
	RemoteAddr() net.Addr
}

// tcpFrameConn transporta um frame por linha sobre um net.Conn.
type tcpFrameConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newTCPFrameConn(conn net.Conn) *tcpFrameConn {
	return &tcpFrameConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

func (t *tcpFrameConn) ReadFrame() (string, error) {
	line, err := t.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return line, nil
}

func (t *tcpFrameConn) WriteFrame(frame string) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_, err := t.conn.Write([]byte(frame + "\n"))
	return err
}

func (t *tcpFrameConn) Close() error         { return t.conn.Close() }
func (t *tcpFrameConn) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

// Client é a representação de um jogador conectado do ponto de vista do
// servidor. Ele agrupa a conexão e os canais de comunicação.
type Client struct {
	id   uuid.UUID
	conn FrameConn

	// Canal bufferizado de mensagens de saída. O buffer evita que quem
	// envia (registry, handler) bloqueie em um cliente lento. Fechado
	// pelo Close; escritas passam sempre por TrySend.
	send chan string

	// Frames crus vindos da conexão. Fechado quando a conexão cai:
	// é o sinal de ConnectionLost para o handler da sessão.
	inbound chan string

	mu     sync.Mutex
	closed bool
}

func NewClient(conn FrameConn) *Client {
	return &Client{
		id:      uuid.New(),
		conn:    conn,
		send:    make(chan string, sendBufferSize),
		inbound: make(chan string),
	}
}

func (c *Client) ID() uuid.UUID        { return c.id }
func (c *Client) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Inbound entrega os frames recebidos, na ordem. O canal fecha quando a
// conexão é perdida.
func (c *Client) Inbound() <-chan string { return c.inbound }

// Start inicia as goroutines de leitura e escrita do cliente.
func (c *Client) Start() {
	go c.writeLoop()
	go c.readLoop()
}

// Close encerra o cliente pelo lado da escrita: fecha o canal de saída, o
// writeLoop entrega o que ainda está no buffer e só então fecha a conexão.
// Um frame terminal enfileirado logo antes do Close chega ao outro lado.
// Seguro chamar mais de uma vez.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readLoop() {
	defer func() {
		close(c.inbound)
		c.Close()
	}()

	for {
		frame, err := c.conn.ReadFrame()
		if err != nil {
			// Desconexão normal ou anormal: para o handler tanto faz,
			// o fechamento de inbound é o sinal.
			return
		}
		c.inbound <- frame
	}
}

// writeLoop escoa o canal de saída para a conexão e termina quando o canal
// fecha, depois de drenar o buffer. É o único lugar que fecha a conexão:
// fechar aqui garante que nenhum frame pendente fica para trás e acorda o
// readLoop, que por sua vez fecha o canal de entrada.
func (c *Client) writeLoop() {
	defer c.conn.Close()
	for frame := range c.send {
		if err := c.conn.WriteFrame(frame); err != nil {
			// Escrita morta: o defer derruba a conexão, o readLoop cai
			// e o Close dele fecha o canal de saída.
			return
		}
	}
}

// TrySend enfileira um frame sem nunca bloquear. Se o cliente já fechou ou
// o buffer está cheio (consumidor morto ou muito lento), o frame é
// descartado e o retorno é false.
func (c *Client) TrySend(frame string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

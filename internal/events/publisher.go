package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Assuntos publicados pelo servidor.
const (
	subjectSessionStarted    = "mercadinho.session.started"
	subjectPurchaseCompleted = "mercadinho.session.purchase"
	subjectScoresPublished   = "mercadinho.session.scores"
)

// ScoreRow é uma linha do placar final como vai para o barramento.
type ScoreRow struct {
	Username string `json:"username"`
	Assets   int    `json:"assets"`
}

// Publisher emite os eventos de ciclo de vida da sessão para observadores
// externos. O servidor funciona igual com ou sem barramento: sem NATS
// configurado, entra o publisher nulo.
type Publisher interface {
	SessionStarted(players []string)
	PurchaseCompleted(username, item string, quantity int)
	ScoresPublished(ranking []ScoreRow)
	Close()
}

// NopPublisher descarta todos os eventos.
type NopPublisher struct{}

func (NopPublisher) SessionStarted(players []string)                       {}
func (NopPublisher) PurchaseCompleted(username, item string, quantity int) {}
func (NopPublisher) ScoresPublished(ranking []ScoreRow)                    {}
func (NopPublisher) Close()                                                {}

// NATSPublisher publica os eventos da sessão em assuntos NATS.
type NATSPublisher struct {
	nc *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("mercadinho-server"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	log.Printf("[Events] conectado ao NATS em %s", url)
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) SessionStarted(players []string) {
	p.publish(subjectSessionStarted, map[string]any{
		"players":    players,
		"started_at": time.Now().Unix(),
	})
}

func (p *NATSPublisher) PurchaseCompleted(username, item string, quantity int) {
	p.publish(subjectPurchaseCompleted, map[string]any{
		"username": username,
		"item":     item,
		"quantity": quantity,
	})
}

func (p *NATSPublisher) ScoresPublished(ranking []ScoreRow) {
	p.publish(subjectScoresPublished, map[string]any{
		"ranking": ranking,
	})
}

func (p *NATSPublisher) Close() {
	p.nc.Drain()
}

// publish serializa e emite; falha de publicação é logada, nunca propaga
// para a sessão.
func (p *NATSPublisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Events] payload inválido para %s: %v", subject, err)
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		log.Printf("[Events] falha ao publicar em %s: %v", subject, err)
	}
}

package session

import (
	"mercadinho/internal/events"
	"mercadinho/internal/game/inventory"
	"mercadinho/internal/network"
)

// Manager é a raiz da lógica do jogo: dono do registro de jogadores, do
// coordenador de inventário e do placar, e a implementação de
// network.SessionHandler entregue ao servidor. Um único Manager vive pelo
// processo inteiro; as sessões passam por ele uma de cada vez.
type Manager struct {
	registry    *Registry
	coordinator *inventory.Coordinator
	scoreboard  *Scoreboard
	events      events.Publisher

	// Roteador da fase de jogo: um handler por comando conhecido.
	playRouter map[network.Kind]commandFunc
}

func NewManager(catalog *inventory.Catalog, pub events.Publisher, regOpts ...RegistryOpt) *Manager {
	if pub == nil {
		pub = events.NopPublisher{}
	}

	m := &Manager{
		registry:    NewRegistry(regOpts...),
		coordinator: inventory.NewCoordinator(catalog, nil),
		scoreboard:  NewScoreboard(),
		events:      pub,
		playRouter:  make(map[network.Kind]commandFunc),
	}
	m.registerPlayHandlers()

	// O terceiro registro prepara a fase de pontuação ainda dentro da
	// seção crítica do registro: nenhum FinalList consegue chegar antes
	// do agregador existir para a sessão.
	m.registry.OnFull(func() {
		m.scoreboard.BeginSession()
		m.events.SessionStarted(m.registry.Usernames())
	})

	// Placar pronto: o registro entra em drenagem e o evento sai para o
	// barramento. A retransmissão aos jogadores é de cada handler.
	m.scoreboard.OnCompleted(func(ranking []RankingEntry) {
		m.registry.Drain()

		rows := make([]events.ScoreRow, 0, len(ranking))
		for _, entry := range ranking {
			rows = append(rows, events.ScoreRow{
				Username: entry.Username,
				Assets:   entry.Assets,
			})
		}
		m.events.ScoresPublished(rows)
	})

	return m
}

// Registry expõe o registro para os testes de fluxo completo.
func (m *Manager) Registry() *Registry { return m.registry }

package session

import (
	"errors"
	"log"
	"sort"
	"sync"

	"github.com/weedbox/syncsaga"
)

const (
	// Orçamento inicial de cada jogador. Terminar com ele intacto (nada
	// comprado) ou estourado (zero ou menos) zera os ativos do jogador.
	StartingBudget = 40

	// Valor contabilizado por item comprado no cálculo de ativos.
	assetValuePerItem = 10 * 7
)

var ErrDuplicateReport = errors.New("session: duplicate final report for slot")

// Report é o relatório terminal de um jogador, com os ativos já calculados.
type Report struct {
	Slot        int
	Username    string
	Budget      int
	ItemsBought int
	Assets      int
}

// RankingEntry é uma linha do placar final, já na ordem de classificação.
type RankingEntry struct {
	Username string
	Assets   int
}

// Scoreboard agrega os relatórios terminais dos três jogadores e produz o
// ranking final. A espera de "todos terminaram" é um ReadyGroup: o terceiro
// relatório completa o grupo, o ranking é computado e o canal Done fecha,
// acordando os três handlers de uma vez.
type Scoreboard struct {
	mu      sync.Mutex
	rg      *syncsaga.ReadyGroup
	reports map[int]Report
	ranking []RankingEntry
	done    chan struct{}

	onCompleted func([]RankingEntry)
}

func NewScoreboard() *Scoreboard {
	return &Scoreboard{
		rg:      syncsaga.NewReadyGroup(),
		reports: make(map[int]Report),
		done:    make(chan struct{}),
	}
}

// OnCompleted registra o callback disparado quando o ranking fica pronto,
// depois do canal Done fechar.
func (s *Scoreboard) OnCompleted(fn func([]RankingEntry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCompleted = fn
}

// BeginSession zera o agregador para a sessão que está começando: um
// participante por slot, todos pendentes.
func (s *Scoreboard) BeginSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = make(map[int]Report)
	s.ranking = nil
	s.done = make(chan struct{})

	// O mesmo ReadyGroup serve todas as sessões do processo: Stop +
	// ResetParticipants o rearmam do zero a cada início de sessão.
	s.rg.Stop()
	s.rg.OnCompleted(func(rg *syncsaga.ReadyGroup) {
		s.complete()
	})
	s.rg.ResetParticipants()
	for i := 0; i < MaxPlayers; i++ {
		s.rg.Add(int64(i), false)
	}
	s.rg.Start()
}

// SubmitReport recebe o relatório terminal de um slot e calcula os ativos:
// orçamento restante mais o valor dos itens comprados — forçado a zero
// quando o jogador não gastou nada ou quebrou. Um segundo relatório do
// mesmo slot é rejeitado com ErrDuplicateReport e não altera nada.
func (s *Scoreboard) SubmitReport(slot int, username string, budget, itemsBought int) error {
	s.mu.Lock()

	if _, dup := s.reports[slot]; dup {
		s.mu.Unlock()
		return ErrDuplicateReport
	}

	assets := budget + itemsBought*assetValuePerItem
	if budget >= StartingBudget || budget <= 0 {
		assets = 0
	}

	s.reports[slot] = Report{
		Slot:        slot,
		Username:    username,
		Budget:      budget,
		ItemsBought: itemsBought,
		Assets:      assets,
	}
	log.Printf("[Scoreboard] relatório do slot %d (%q): ativos=%d", slot, username, assets)
	s.mu.Unlock()

	// Fora do mutex: o terceiro Ready dispara complete().
	s.rg.Ready(int64(slot))
	return nil
}

// complete ordena os relatórios por ativos decrescentes — empate decidido
// pelo índice do slot, estável e determinístico — e libera os handlers.
func (s *Scoreboard) complete() {
	s.mu.Lock()

	ranked := make([]Report, 0, MaxPlayers)
	for i := 0; i < MaxPlayers; i++ {
		if report, ok := s.reports[i]; ok {
			ranked = append(ranked, report)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Assets > ranked[j].Assets
	})

	s.ranking = make([]RankingEntry, 0, len(ranked))
	for _, report := range ranked {
		s.ranking = append(s.ranking, RankingEntry{
			Username: report.Username,
			Assets:   report.Assets,
		})
	}

	ranking := s.ranking
	cb := s.onCompleted
	close(s.done)
	s.mu.Unlock()

	log.Printf("[Scoreboard] todos terminaram, placar pronto")
	if cb != nil {
		cb(ranking)
	}
}

// Done devolve o canal que fecha quando os três relatórios chegaram e o
// ranking está pronto.
func (s *Scoreboard) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Ranking devolve o placar final da sessão corrente.
func (s *Scoreboard) Ranking() []RankingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ranking
}

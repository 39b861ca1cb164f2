package session

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/weedbox/timebank"

	"mercadinho/internal/network"
)

// MaxPlayers é o tamanho fixo de uma sessão: exatamente três jogadores.
const MaxPlayers = 3

// Ciclo de vida do registro de jogadores.
const (
	registryStateAccepting = "accepting" // 0-2 slots ocupados
	registryStateFull      = "full"      // 3 slots, barreira liberada
	registryStateDraining  = "draining"  // placar enviado, slots esvaziando
)

var ErrCapacityExceeded = errors.New("session: capacity exceeded")

// PlayerSlot identifica um dos três participantes da sessão. O índice é
// atribuído por ordem de chegada e imutável até o fim da sessão.
type PlayerSlot struct {
	Index    int
	Client   *network.Client
	Username string
}

// Registry rastreia os jogadores conectados, aplica o teto de 3 jogadores e
// libera a barreira de início quando o terceiro registra. A espera dos
// handlers é bloqueante de verdade: um canal fechado na liberação, nunca
// polling.
type Registry struct {
	mu       sync.Mutex
	state    string
	slots    [MaxPlayers]*PlayerSlot
	started  chan struct{}
	progress [MaxPlayers]chan int

	lobbyTimeout time.Duration
	lobbyTimer   *timebank.TimeBank

	onFull func()
}

type RegistryOpt func(*Registry)

// WithLobbyTimeout arma a evicção de um lobby que nunca completa: se o
// terceiro jogador não chega dentro do prazo, os que esperam são avisados e
// desconectados. Zero desliga (comportamento original: lobby espera para
// sempre).
func WithLobbyTimeout(d time.Duration) RegistryOpt {
	return func(r *Registry) {
		r.lobbyTimeout = d
	}
}

func NewRegistry(opts ...RegistryOpt) *Registry {
	r := &Registry{
		state:      registryStateAccepting,
		started:    make(chan struct{}),
		lobbyTimer: timebank.NewTimeBank(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnFull registra o callback disparado no momento exato em que o terceiro
// slot é preenchido, ainda dentro da seção crítica e antes da barreira
// liberar. É onde a fase de pontuação é preparada.
func (r *Registry) OnFull(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFull = fn
}

// Register tenta ocupar um slot para a conexão. Devolve o índice do slot e
// se este registro foi o que completou a mesa (esse handler fica
// responsável por difundir o aviso de início). Com a mesa cheia ou fora da
// fase de aceitação, devolve ErrCapacityExceeded sem ocupar slot algum.
func (r *Registry) Register(c *network.Client, username string) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != registryStateAccepting {
		return 0, false, ErrCapacityExceeded
	}

	idx := -1
	for i := range r.slots {
		if r.slots[i] == nil {
			idx = i
			break
		}
	}
	if idx == -1 {
		return 0, false, ErrCapacityExceeded
	}

	r.slots[idx] = &PlayerSlot{Index: idx, Client: c, Username: username}
	r.progress[idx] = make(chan int, MaxPlayers)
	count := r.countLocked()
	log.Printf("[Registry] %q ocupou o slot %d (%d/%d)", username, idx, count, MaxPlayers)

	if count == 1 && r.lobbyTimeout > 0 {
		r.armLobbyTimerLocked()
	}

	if count == MaxPlayers {
		r.state = registryStateFull
		r.lobbyTimer.Cancel()
		if r.onFull != nil {
			r.onFull()
		}
		// Fechar o canal é a liberação da barreira: todo mundo que
		// espera em AwaitStart acorda de uma vez.
		close(r.started)
		return idx, true, nil
	}

	r.notifyWaitersLocked(count)
	return idx, false, nil
}

// AwaitStart devolve o canal da barreira de início. Ele fecha exatamente
// uma vez por sessão, quando o terceiro jogador registra.
func (r *Registry) AwaitStart() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Progress devolve o canal por onde o handler do slot recebe a contagem de
// jogadores a cada mudança — uma notificação por mudança, não por iteração.
func (r *Registry) Progress(slot int) <-chan int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress[slot]
}

// Release devolve o slot ao registro. Durante a fase de aceitação isso
// reabre a vaga e os que ainda esperam recebem a contagem nova. Quando o
// último slot da fase de drenagem é liberado, o registro volta a aceitar
// para uma próxima sessão.
func (r *Registry) Release(slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot < 0 || slot >= MaxPlayers || r.slots[slot] == nil {
		return
	}
	username := r.slots[slot].Username
	r.slots[slot] = nil
	r.progress[slot] = nil
	count := r.countLocked()
	log.Printf("[Registry] %q liberou o slot %d (%d/%d)", username, slot, count, MaxPlayers)

	switch r.state {
	case registryStateAccepting:
		if count == 0 {
			r.lobbyTimer.Cancel()
		} else {
			r.notifyWaitersLocked(count)
		}
	case registryStateDraining:
		if count == 0 {
			r.resetLocked()
		}
	}
}

// Drain marca o fim da fase de pontuação: os handlers ainda retransmitem o
// placar final, mas nenhum registro novo entra até todos liberarem seus
// slots.
func (r *Registry) Drain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == registryStateFull {
		r.state = registryStateDraining
	}
}

// Full informa se a mesa está cheia (pré-checagem de cortesia na aceitação
// da conexão; a rejeição autoritativa é a de Register).
func (r *Registry) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state != registryStateAccepting || r.countLocked() == MaxPlayers
}

// Count devolve quantos slots estão ocupados.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countLocked()
}

// Usernames devolve os nomes registrados, na ordem dos slots.
func (r *Registry) Usernames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, MaxPlayers)
	for _, slot := range r.slots {
		if slot != nil {
			names = append(names, slot.Username)
		}
	}
	return names
}

// Broadcast enfileira um frame para todos os jogadores registrados.
// O envio nunca bloqueia: um cliente com buffer cheio perde o frame em vez
// de travar o registro.
func (r *Registry) Broadcast(frame string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, slot := range r.slots {
		if slot == nil || slot.Client == nil {
			continue
		}
		if !slot.Client.TrySend(frame) {
			log.Printf("[Registry] frame descartado para %q (buffer cheio)", slot.Username)
		}
	}
}

// notifyWaitersLocked entrega a contagem nova para cada handler em espera.
func (r *Registry) notifyWaitersLocked(count int) {
	for i, slot := range r.slots {
		if slot == nil || r.progress[i] == nil {
			continue
		}
		select {
		case r.progress[i] <- count:
		default:
		}
	}
}

func (r *Registry) countLocked() int {
	count := 0
	for _, slot := range r.slots {
		if slot != nil {
			count++
		}
	}
	return count
}

// resetLocked prepara o registro para uma próxima sessão.
func (r *Registry) resetLocked() {
	r.state = registryStateAccepting
	r.started = make(chan struct{})
	log.Printf("[Registry] sessão encerrada, aceitando jogadores de novo")
}

// armLobbyTimerLocked agenda a evicção do lobby incompleto.
func (r *Registry) armLobbyTimerLocked() {
	r.lobbyTimer.Cancel()
	err := r.lobbyTimer.NewTask(r.lobbyTimeout, func(isCancelled bool) {
		if isCancelled {
			return
		}
		r.evictLobby()
	})
	if err != nil {
		log.Printf("[Registry] falha ao armar timeout do lobby: %v", err)
	}
}

// evictLobby derruba um lobby que não completou a tempo. Fechar as conexões
// acorda os handlers (o canal inbound deles fecha) e cada um libera seu
// próprio slot no caminho de teardown.
func (r *Registry) evictLobby() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != registryStateAccepting || r.countLocked() == 0 {
		return
	}
	log.Printf("[Registry] lobby expirou com %d/%d jogadores", r.countLocked(), MaxPlayers)

	for _, slot := range r.slots {
		if slot == nil || slot.Client == nil {
			continue
		}
		slot.Client.TrySend(network.Encode(network.KindLobbyTimeout,
			"Not enough players joined in time. Please try again later."))
		slot.Client.Close()
	}
}

package session

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"

	"mercadinho/internal/game/inventory"
	"mercadinho/internal/network"
)

// Estados da máquina de estados de cada conexão. Cada handler é sequencial;
// a concorrência está entre handlers, não dentro de um.
const (
	state_AUTHENTICATING    = "authenticating"
	state_WAITING_FOR_START = "waiting_for_start"
	state_PLAYING           = "playing"
	state_FINISHED          = "finished"
	state_CLOSED            = "closed"
)

// commandFunc é a assinatura dos handlers de comando da fase de jogo.
type commandFunc func(h *playerHandler, frame network.Frame)

// playerHandler conduz um jogador da autenticação ao teardown.
type playerHandler struct {
	m      *Manager
	client *network.Client

	state      string
	slot       int
	username   string
	registered bool
	lastToJoin bool
}

// HandleClient implementa network.SessionHandler: uma goroutine por conexão
// aceita, do primeiro frame ao fechamento.
func (m *Manager) HandleClient(c *network.Client) {
	h := &playerHandler{
		m:      m,
		client: c,
		state:  state_AUTHENTICATING,
		slot:   -1,
	}
	h.run()
}

func (m *Manager) registerPlayHandlers() {
	m.playRouter[network.KindGetInventory] = (*playerHandler).handleGetInventory
	m.playRouter[network.KindUpdateInventory] = (*playerHandler).handleUpdateInventory
	m.playRouter[network.KindRefreshInventory] = (*playerHandler).handleRefreshInventory
	m.playRouter[network.KindFinalList] = (*playerHandler).handleFinalList
}

func (h *playerHandler) run() {
	defer h.teardown()

	// Aviso imediato pós-accept: cortesia, a rejeição que vale é a do
	// Register.
	if h.m.registry.Full() {
		h.send(network.Encode(network.KindPlayerLimitReached,
			"This game is full. Please try again later."))
		return
	}
	h.send(network.Encode(network.KindPlayerLimitNotReached, "Player count not reached."))

	if !h.authenticate() {
		return
	}
	if !h.waitForStart() {
		return
	}
	h.play()
	if h.state == state_FINISHED {
		h.awaitScores()
	}
}

// authenticate lê o primeiro frame — o nome do usuário, validado do lado do
// cliente — e ocupa um slot. Uma quarta conexão concorrente recebe a
// mensagem terminal de capacidade e nunca ocupa slot.
func (h *playerHandler) authenticate() bool {
	raw, ok := <-h.client.Inbound()
	if !ok {
		return false
	}

	username := strings.TrimSpace(raw)
	if username == "" {
		log.Printf("[Handler] %s mandou nome vazio, encerrando", h.client.RemoteAddr())
		return false
	}

	slot, last, err := h.m.registry.Register(h.client, username)
	if err != nil {
		h.send(network.Encode(network.KindPlayerLimitReached,
			"This game is full. Please try again later."))
		return false
	}

	h.slot = slot
	h.username = username
	h.registered = true
	h.lastToJoin = last
	h.state = state_WAITING_FOR_START
	log.Printf("[Handler] (%s) conectou com o nome %q no slot %d", h.client.RemoteAddr(), username, slot)
	return true
}

// waitForStart bloqueia na barreira de início. Enquanto espera, retransmite
// a contagem de jogadores a cada mudança.
func (h *playerHandler) waitForStart() bool {
	progress := h.m.registry.Progress(h.slot)
	started := h.m.registry.AwaitStart()

	for {
		select {
		case count := <-progress:
			needed := MaxPlayers - count
			h.send(network.Encode(network.KindWaitingForPlayers,
				"Player count is "+strconv.Itoa(count)+". We need "+strconv.Itoa(needed)+" more player(s)."))

		case <-started:
			h.enterPlay()
			return true

		case raw, ok := <-h.client.Inbound():
			if !ok {
				// Desconectou no lobby: o teardown libera o slot e a
				// vaga reabre para outro jogador.
				return false
			}
			// A barreira pode ter liberado junto com a chegada deste
			// frame: um cliente rápido manda o primeiro comando antes
			// do handler acordar no caso da barreira. Aí o frame é o
			// primeiro comando da partida, não ruído de lobby.
			select {
			case <-started:
				h.enterPlay()
				h.dispatch(raw)
				return true
			default:
			}
			// Frames antes do início do jogo não significam nada.
		}
	}
}

// enterPlay marca a transição para a fase de jogo. O handler do terceiro
// registro é quem difunde o aviso de início para a mesa inteira.
func (h *playerHandler) enterPlay() {
	if h.lastToJoin {
		h.m.registry.Broadcast(network.Encode(network.KindAllPlayersConnected))
		log.Printf("[Handler] todos conectados, o jogo vai começar")
	}
	h.state = state_PLAYING
}

// play é o loop da fase de jogo: lê um frame, despacha pelo roteador.
func (h *playerHandler) play() {
	for h.state == state_PLAYING {
		raw, ok := <-h.client.Inbound()
		if !ok {
			h.state = state_CLOSED
			return
		}
		h.dispatch(raw)
	}
}

// dispatch decodifica e roteia um frame da fase de jogo. Frame malformado
// ou desconhecido é logado e ignorado.
func (h *playerHandler) dispatch(raw string) {
	frame, err := network.Decode(raw)
	if err != nil {
		log.Printf("[Handler] frame malformado de %q: %v", h.username, err)
		return
	}

	if frame.Kind == network.KindExit {
		// Saída explícita: sem resposta, direto para o teardown.
		h.state = state_CLOSED
		return
	}

	cmd, found := h.m.playRouter[frame.Kind]
	if !found {
		log.Printf("[Handler] ação desconhecida de %q: %s", h.username, frame.Kind)
		return
	}
	cmd(h, frame)
}

func (h *playerHandler) handleGetInventory(frame network.Frame) {
	list := h.m.coordinator.Assign(h.slot)
	h.sendInventory(list)
}

func (h *playerHandler) handleUpdateInventory(frame network.Frame) {
	if len(frame.Args) != 2 {
		log.Printf("[Handler] UpdateInventory malformado de %q: %v", h.username, frame.Args)
		return
	}
	item := frame.Args[0]
	quantity, err := strconv.Atoi(frame.Args[1])
	if err != nil {
		log.Printf("[Handler] quantidade inválida de %q: %q", h.username, frame.Args[1])
		return
	}

	list, err := h.m.coordinator.Purchase(h.slot, item, quantity)
	if err != nil {
		h.send(network.Encode(network.KindPurchaseFailed, purchaseFailureCode(err), item))
		return
	}

	h.m.events.PurchaseCompleted(h.username, item, quantity)
	h.sendInventory(list)
}

func (h *playerHandler) handleRefreshInventory(frame network.Frame) {
	h.sendInventory(h.m.coordinator.Refresh(h.slot))
}

// handleFinalList entrega o relatório terminal ao placar e muda o handler
// para a fase de espera do ranking.
func (h *playerHandler) handleFinalList(frame network.Frame) {
	if len(frame.Args) != 3 {
		log.Printf("[Handler] FinalList malformado de %q: %v", h.username, frame.Args)
		return
	}
	budget, err1 := strconv.Atoi(frame.Args[1])
	itemsBought, err2 := strconv.Atoi(frame.Args[2])
	if err1 != nil || err2 != nil {
		log.Printf("[Handler] FinalList com números inválidos de %q: %v", h.username, frame.Args)
		return
	}

	err := h.m.scoreboard.SubmitReport(h.slot, frame.Args[0], budget, itemsBought)
	if errors.Is(err, ErrDuplicateReport) {
		log.Printf("[Handler] relatório duplicado do slot %d ignorado", h.slot)
		return
	}
	h.state = state_FINISHED
}

// awaitScores bloqueia até o placar da sessão fechar e retransmite o
// ranking para este jogador.
func (h *playerHandler) awaitScores() {
	done := h.m.scoreboard.Done()

	for {
		select {
		case <-done:
			rows := make([]string, 0, MaxPlayers)
			for _, entry := range h.m.scoreboard.Ranking() {
				rows = append(rows, network.FormatScoreRow(entry.Username, entry.Assets))
			}
			h.send(network.EncodeFinalScores(rows))
			h.state = state_CLOSED
			return

		case _, ok := <-h.client.Inbound():
			if !ok {
				h.state = state_CLOSED
				return
			}
			// Mensagens depois do FinalList não têm efeito.
		}
	}
}

// teardown é a limpeza incondicional: lista pessoal, slot e conexão.
// Falhas desta conexão nunca atravessam para o estado das outras duas.
func (h *playerHandler) teardown() {
	h.state = state_CLOSED
	if h.registered {
		h.m.coordinator.Clear(h.slot)
		h.m.registry.Release(h.slot)
	}
	h.client.Close()
	log.Printf("[Handler] conexão de %s encerrada", h.client.RemoteAddr())
}

func (h *playerHandler) send(frame string) {
	if !h.client.TrySend(frame) {
		log.Printf("[Handler] frame descartado para %q (buffer cheio)", h.username)
	}
}

func (h *playerHandler) sendInventory(list []inventory.PersonalItem) {
	data, err := json.Marshal(list)
	if err != nil {
		log.Printf("[Handler] falha ao serializar inventário de %q: %v", h.username, err)
		return
	}
	h.send(string(data))
}

// purchaseFailureCode traduz os erros de pré-condição de compra para o
// código que vai no frame de resposta.
func purchaseFailureCode(err error) string {
	switch {
	case errors.Is(err, inventory.ErrItemNotFound):
		return "ItemNotFound"
	case errors.Is(err, inventory.ErrOutOfStock):
		return "OutOfStock"
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "InsufficientStock"
	case errors.Is(err, inventory.ErrInvalidQuantity):
		return "InvalidQuantity"
	default:
		return "PurchaseError"
	}
}

package inventory

import (
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/thoas/go-funk"
)

const (
	// Cada jogador recebe uma lista pessoal de até 6 itens distintos.
	PersonalListSize = 6

	// Quantidade atribuída a cada item da lista pessoal: [1, 4].
	minAssignedQuantity = 1
	maxAssignedQuantity = 4
)

// PersonalItem é uma linha da lista pessoal de um jogador: a visão dele de
// um item do catálogo, mais a quantidade sorteada para ele comprar.
// Os nomes JSON são os que o cliente original serializava.
type PersonalItem struct {
	Name             string `json:"ItemName"`
	Price            int    `json:"ItemPrice"`
	Stock            int    `json:"ItemCount"`
	AssignedQuantity int    `json:"RandomQuantity"`
}

// Coordinator deriva e mantém a lista pessoal de cada slot consistente com
// o catálogo compartilhado. As listas pessoais têm seu próprio mutex,
// independente do domínio de exclusão do catálogo.
type Coordinator struct {
	mu       sync.Mutex
	catalog  *Catalog
	rng      *rand.Rand
	personal map[int][]PersonalItem
}

// NewCoordinator cria um Coordinator sobre o catálogo dado. Um rng nulo vira
// um gerador semeado pelo relógio.
func NewCoordinator(catalog *Catalog, rng *rand.Rand) *Coordinator {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewSource(int64(seed)))
	}
	return &Coordinator{
		catalog:  catalog,
		rng:      rng,
		personal: make(map[int][]PersonalItem),
	}
}

// Assign sorteia a lista pessoal de um slot: até 6 itens distintos do
// catálogo (itens sem estoque ficam de fora), cada um com uma quantidade
// aleatória em [1,4], limitada ao estoque vivo. Se o catálogo tem menos de
// 6 itens disponíveis, a lista leva todos.
func (co *Coordinator) Assign(slot int) []PersonalItem {
	co.mu.Lock()
	defer co.mu.Unlock()

	available := funk.Filter(co.catalog.Snapshot(), func(item Item) bool {
		return item.Stock > 0
	}).([]Item)

	co.rng.Shuffle(len(available), func(i, j int) {
		available[i], available[j] = available[j], available[i]
	})

	size := min(PersonalListSize, len(available))
	list := make([]PersonalItem, 0, size)
	for _, item := range available[:size] {
		quantity := minAssignedQuantity + co.rng.Intn(maxAssignedQuantity)
		list = append(list, PersonalItem{
			Name:             item.Name,
			Price:            item.Price,
			Stock:            item.Stock,
			AssignedQuantity: min(quantity, item.Stock),
		})
	}

	co.personal[slot] = list
	return copyList(list)
}

// Purchase executa uma compra de um item da lista pessoal do slot.
// A quantidade não é ajustada automaticamente: pedir mais do que o estoque
// vivo falha com ErrInsufficientStock e o chamador decide pedir menos (o
// fluxo de negociação de estoque baixo acontece antes, do lado do cliente).
// Devolve a lista pessoal já atualizada.
func (co *Coordinator) Purchase(slot int, name string, quantity int) ([]PersonalItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	list := co.personal[slot]
	idx := -1
	for i := range list {
		if list[i].Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrItemNotFound
	}

	item, err := co.catalog.Decrement(name, quantity)
	if err != nil {
		if errors.Is(err, ErrCatalogIO) {
			// A baixa em memória valeu; só o arquivo ficou para trás.
			// A sessão continua com o estado em memória.
			log.Printf("[Coordinator] falha ao persistir catálogo: %v", err)
		} else {
			return nil, err
		}
	}

	list[idx].Stock = item.Stock
	list[idx].AssignedQuantity -= quantity
	if list[idx].AssignedQuantity <= 0 {
		// Linha totalmente consumida: sai da lista pessoal.
		list = append(list[:idx], list[idx+1:]...)
	}
	co.personal[slot] = list

	return co.refreshLocked(slot), nil
}

// Refresh recalcula a lista pessoal do slot contra o estoque vivo do
// catálogo. Sem compra no meio, duas chamadas seguidas devolvem o mesmo
// resultado.
func (co *Coordinator) Refresh(slot int) []PersonalItem {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.refreshLocked(slot)
}

// refreshLocked cruza a lista pessoal com o catálogo: linhas cujo estoque
// compartilhado zerou caem fora, e a quantidade atribuída nunca fica acima
// do estoque vivo. Chamar com o mutex em mãos.
func (co *Coordinator) refreshLocked(slot int) []PersonalItem {
	list := co.personal[slot]
	refreshed := make([]PersonalItem, 0, len(list))

	for _, line := range list {
		stock, ok := co.catalog.Stock(line.Name)
		if !ok || stock == 0 {
			continue
		}
		line.Stock = stock
		if line.AssignedQuantity > stock {
			line.AssignedQuantity = stock
		}
		refreshed = append(refreshed, line)
	}

	co.personal[slot] = refreshed
	return copyList(refreshed)
}

// Clear descarta a lista pessoal de um slot, liberando-o para uma próxima
// sessão.
func (co *Coordinator) Clear(slot int) {
	co.mu.Lock()
	defer co.mu.Unlock()
	delete(co.personal, slot)
}

func copyList(list []PersonalItem) []PersonalItem {
	out := make([]PersonalItem, len(list))
	copy(out, list)
	return out
}

package inventory

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var (
	ErrItemNotFound      = errors.New("inventory: item not found")
	ErrOutOfStock        = errors.New("inventory: item out of stock")
	ErrInsufficientStock = errors.New("inventory: insufficient stock for requested quantity")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be positive")
	ErrCatalogIO         = errors.New("inventory: catalog io failure")
)

// Item é um registro do catálogo compartilhado. Os nomes JSON seguem o
// formato que os clientes já entendem (ItemName/ItemPrice/ItemCount).
type Item struct {
	Name  string `json:"ItemName"`
	Price int    `json:"ItemPrice"`
	Stock int    `json:"ItemCount"`
}

// Catalog é o catálogo durável de itens compráveis, compartilhado entre os
// três jogadores. Todo acesso ao estado em memória e ao arquivo passa pelo
// mesmo mutex: compras em itens diferentes também serializam aqui, para o
// arquivo persistido nunca divergir do estado em memória.
type Catalog struct {
	mu    sync.Mutex
	path  string
	items []Item
}

// LoadCatalog lê o arquivo de registros `nome,preço,estoque`. Linhas
// malformadas são puladas com aviso, nunca fatais. O catálogo é normalizado
// (ordenado por nome) e reescrito, como o arquivo de inventário original.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogIO, err)
	}

	c := &Catalog{path: path}
	seen := make(map[string]bool)

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		item, ok := parseRecord(line)
		if !ok {
			log.Printf("[Catalog] registro inválido ignorado: %q", line)
			continue
		}
		if seen[item.Name] {
			log.Printf("[Catalog] nome duplicado ignorado: %q", item.Name)
			continue
		}
		seen[item.Name] = true
		c.items = append(c.items, item)
	}

	sort.Slice(c.items, func(i, j int) bool {
		return c.items[i].Name < c.items[j].Name
	})

	if err := c.persist(); err != nil {
		return nil, err
	}
	return c, nil
}

func parseRecord(line string) (Item, bool) {
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return Item{}, false
	}

	price, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil || price < 0 {
		return Item{}, false
	}
	stock, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil || stock < 0 {
		return Item{}, false
	}

	name := strings.TrimSpace(fields[0])
	if name == "" {
		return Item{}, false
	}
	return Item{Name: name, Price: price, Stock: stock}, true
}

// Snapshot devolve uma cópia dos itens do catálogo.
func (c *Catalog) Snapshot() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]Item, len(c.items))
	copy(items, c.items)
	return items
}

// Stock devolve o estoque atual de um item.
func (c *Catalog) Stock(name string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, item := range c.items {
		if item.Name == name {
			return item.Stock, true
		}
	}
	return 0, false
}

// Decrement valida e executa a baixa de estoque de uma compra, e persiste o
// catálogo atualizado. Nunca deixa o estoque negativo: quantidade maior que
// o estoque é rejeitada antes de qualquer mutação.
//
// Uma falha de escrita no arquivo NÃO desfaz a baixa em memória: o estado em
// memória segue valendo pelo resto da sessão e o erro (ErrCatalogIO) é
// devolvido junto do item para o chamador decidir o que logar.
func (c *Catalog) Decrement(name string, quantity int) (Item, error) {
	if quantity <= 0 {
		return Item{}, ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i := range c.items {
		if c.items[i].Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Item{}, ErrItemNotFound
	}

	switch current := c.items[idx].Stock; {
	case current == 0:
		return Item{}, ErrOutOfStock
	case quantity > current:
		return Item{}, ErrInsufficientStock
	}

	c.items[idx].Stock -= quantity
	item := c.items[idx]

	if err := c.persist(); err != nil {
		return item, err
	}
	return item, nil
}

// persist reescreve o arquivo do catálogo. Chamar com o mutex em mãos.
func (c *Catalog) persist() error {
	var sb strings.Builder
	for _, item := range c.items {
		fmt.Fprintf(&sb, "%s,%d,%d\n", item.Name, item.Price, item.Stock)
	}

	if err := os.WriteFile(c.path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogIO, err)
	}
	return nil
}

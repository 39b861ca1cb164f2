package inventory

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T, content string) *Coordinator {
	t.Helper()
	catalog, err := LoadCatalog(writeCatalogFile(t, content))
	require.NoError(t, err)
	return NewCoordinator(catalog, rand.New(rand.NewSource(7)))
}

func TestAssignPersonalInventory(t *testing.T) {
	co := newTestCoordinator(t,
		"apple,2,10\nbanana,5,3\ncheese,8,6\nbread,10,1\nmilk,3,4\n"+
			"eggs,6,12\nrice,4,9\ntea,7,2\nghost,9,0\n")

	list := co.Assign(0)
	require.Len(t, list, PersonalListSize)

	seen := make(map[string]bool)
	for _, line := range list {
		assert.False(t, seen[line.Name], "item repetido: %s", line.Name)
		seen[line.Name] = true

		assert.NotEqual(t, "ghost", line.Name, "item sem estoque não entra na lista")
		assert.GreaterOrEqual(t, line.AssignedQuantity, 1)
		assert.LessOrEqual(t, line.AssignedQuantity, 4)
		assert.LessOrEqual(t, line.AssignedQuantity, line.Stock)
	}
}

func TestAssignWithSmallCatalogReturnsAll(t *testing.T) {
	co := newTestCoordinator(t, "apple,2,10\nbanana,5,3\n")

	list := co.Assign(1)
	require.Len(t, list, 2)
}

func TestAssignmentsAreIndependentDraws(t *testing.T) {
	co := newTestCoordinator(t, "apple,2,10\nbanana,5,3\ncheese,8,6\n")

	first := co.Assign(0)
	second := co.Assign(1)
	require.Len(t, first, 3)
	require.Len(t, second, 3)
	// Sorteios independentes sobre o mesmo catálogo pequeno: os mesmos
	// nomes aparecem, as quantidades não precisam coincidir.
}

func TestPurchaseNeverOversells(t *testing.T) {
	co := newTestCoordinator(t, "apple,5,3\nbread,10,1\n")
	co.Assign(0)
	co.Assign(1)

	// Jogador 0 compra 2 maçãs: sobra 1 no estoque compartilhado.
	list, err := co.Purchase(0, "apple", 2)
	require.NoError(t, err)
	for _, line := range list {
		if line.Name == "apple" {
			assert.Equal(t, 1, line.Stock)
		}
	}

	// Jogador 1 tenta 2 com só 1 vivo: recusa, sem ajuste automático.
	_, err = co.Purchase(1, "apple", 2)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Com a quantidade certa a compra sai e o estoque zera.
	_, err = co.Purchase(1, "apple", 1)
	require.NoError(t, err)

	// Para o jogador 0 a linha de apple sumiu no refresh: estoque zero.
	for _, line := range co.Refresh(0) {
		assert.NotEqual(t, "apple", line.Name)
	}

	// A visão do jogador 0 ainda listava bread; jogador 1 esgota antes.
	_, err = co.Purchase(1, "bread", 1)
	require.NoError(t, err)
	_, err = co.Purchase(0, "bread", 1)
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestPurchasePreconditions(t *testing.T) {
	co := newTestCoordinator(t, "apple,5,3\n")
	co.Assign(0)

	_, err := co.Purchase(0, "caviar", 1)
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = co.Purchase(0, "apple", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = co.Purchase(0, "apple", -2)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestRefreshIsIdempotent(t *testing.T) {
	co := newTestCoordinator(t, "apple,2,10\nbanana,5,3\ncheese,8,6\n")
	co.Assign(0)

	first := co.Refresh(0)
	second := co.Refresh(0)
	assert.Equal(t, first, second)
}

func TestRefreshClampsAssignedQuantityToLiveStock(t *testing.T) {
	co := newTestCoordinator(t, "apple,2,4\n")
	co.Assign(0)
	co.Assign(1)

	// Jogador 1 seca quase todo o estoque compartilhado.
	_, err := co.Purchase(1, "apple", 3)
	require.NoError(t, err)

	for _, line := range co.Refresh(0) {
		assert.LessOrEqual(t, line.AssignedQuantity, line.Stock)
	}
}

func TestClearDropsPersonalList(t *testing.T) {
	co := newTestCoordinator(t, "apple,2,10\nbanana,5,3\n")
	co.Assign(0)
	co.Clear(0)
	assert.Empty(t, co.Refresh(0))
}

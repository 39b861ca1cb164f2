package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, s *Scoreboard) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("placar não fechou com os três relatórios entregues")
	}
}

func TestScoreboardRankingAndForcedZero(t *testing.T) {
	s := NewScoreboard()
	s.BeginSession()

	// alice quebrou (orçamento zero ou menos): ativos forçados a zero.
	require.NoError(t, s.SubmitReport(0, "alice", 0, 5))
	// bob não comprou nada (orçamento intacto): também zero.
	require.NoError(t, s.SubmitReport(1, "bob", 40, 0))
	// carol gastou com juízo: 15 + 3*70 = 225.
	require.NoError(t, s.SubmitReport(2, "carol", 15, 3))

	waitDone(t, s)

	ranking := s.Ranking()
	require.Len(t, ranking, MaxPlayers)
	assert.Equal(t, RankingEntry{Username: "carol", Assets: 225}, ranking[0])
	// Empate em zero: desempate estável pela ordem dos slots.
	assert.Equal(t, RankingEntry{Username: "alice", Assets: 0}, ranking[1])
	assert.Equal(t, RankingEntry{Username: "bob", Assets: 0}, ranking[2])
}

func TestScoreboardRejectsDuplicateReport(t *testing.T) {
	s := NewScoreboard()
	s.BeginSession()

	require.NoError(t, s.SubmitReport(0, "alice", 10, 2))
	err := s.SubmitReport(0, "alice", 30, 1)
	assert.ErrorIs(t, err, ErrDuplicateReport)

	require.NoError(t, s.SubmitReport(1, "bob", 20, 1))
	require.NoError(t, s.SubmitReport(2, "carol", 5, 4))
	waitDone(t, s)

	// O primeiro relatório de alice prevalece: 10 + 2*70 = 150.
	for _, entry := range s.Ranking() {
		if entry.Username == "alice" {
			assert.Equal(t, 150, entry.Assets)
		}
	}
}

func TestScoreboardDoneBlocksUntilAllReported(t *testing.T) {
	s := NewScoreboard()
	s.BeginSession()

	require.NoError(t, s.SubmitReport(0, "alice", 10, 2))
	require.NoError(t, s.SubmitReport(1, "bob", 20, 1))

	select {
	case <-s.Done():
		t.Fatal("o placar fechou antes do terceiro relatório")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, s.SubmitReport(2, "carol", 5, 4))
	waitDone(t, s)
}

func TestScoreboardOnCompletedCallback(t *testing.T) {
	s := NewScoreboard()
	got := make(chan []RankingEntry, 1)
	s.OnCompleted(func(ranking []RankingEntry) {
		got <- ranking
	})
	s.BeginSession()

	require.NoError(t, s.SubmitReport(0, "alice", 10, 2))
	require.NoError(t, s.SubmitReport(1, "bob", 20, 1))
	require.NoError(t, s.SubmitReport(2, "carol", 5, 4))

	select {
	case ranking := <-got:
		require.Len(t, ranking, MaxPlayers)
		assert.Equal(t, "carol", ranking[0].Username)
		assert.Equal(t, 5+4*70, ranking[0].Assets)
	case <-time.After(2 * time.Second):
		t.Fatal("callback de conclusão não disparou")
	}
}

func TestScoreboardBeginSessionResetsState(t *testing.T) {
	s := NewScoreboard()
	s.BeginSession()

	require.NoError(t, s.SubmitReport(0, "alice", 10, 2))
	require.NoError(t, s.SubmitReport(1, "bob", 20, 1))
	require.NoError(t, s.SubmitReport(2, "carol", 5, 4))
	waitDone(t, s)

	// Sessão nova: os slots voltam a poder reportar e o Done rearma.
	s.BeginSession()
	select {
	case <-s.Done():
		t.Fatal("o canal Done da sessão nova já estava fechado")
	default:
	}
	require.NoError(t, s.SubmitReport(0, "dave", 12, 1))
}

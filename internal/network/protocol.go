package network

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifica o tipo de um frame do protocolo.
// Um conjunto fechado: adicionar um comando novo exige um case aqui,
// não uma string solta espalhada pelo código.
type Kind int

const (
	KindUnknown Kind = iota

	// client -> server
	KindGetInventory
	KindUpdateInventory
	KindRefreshInventory
	KindFinalList
	KindExit

	// server -> client
	KindPlayerLimitNotReached
	KindPlayerLimitReached
	KindWaitingForPlayers
	KindAllPlayersConnected
	KindPurchaseFailed
	KindLobbyTimeout
	KindFinalScores
)

const (
	// Separador primário entre o tipo do frame e o payload, e também
	// entre os campos do payload.
	fieldSeparator = ":"

	// O placar final usa um separador próprio: um traço após o tipo e
	// uma linha por jogador no payload.
	finalScoresTag = "FinalScores-"
)

var ErrMalformedFrame = errors.New("network: malformed frame, missing kind tag")

var kindTags = map[Kind]string{
	KindGetInventory:          "GetInventory",
	KindUpdateInventory:       "UpdateInventory",
	KindRefreshInventory:      "RefreshInventory",
	KindFinalList:             "FinalList",
	KindExit:                  "Exit",
	KindPlayerLimitNotReached: "PlayerLimitNotReached",
	KindPlayerLimitReached:    "PlayerLimitReached",
	KindWaitingForPlayers:     "WaitingForPlayers",
	KindAllPlayersConnected:   "AllPlayersConnected",
	KindPurchaseFailed:        "PurchaseFailed",
	KindLobbyTimeout:          "LobbyTimeout",
	KindFinalScores:           "FinalScores",
}

var tagKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(kindTags))
	for k, tag := range kindTags {
		m[tag] = k
	}
	return m
}()

func (k Kind) String() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return "Unknown"
}

// Frame é uma mensagem decodificada: o tipo e os campos do payload, na ordem.
type Frame struct {
	Kind Kind
	Args []string
}

// Encode monta um frame de texto a partir do tipo e dos campos do payload.
func Encode(kind Kind, args ...string) string {
	if len(args) == 0 {
		return kind.String()
	}
	return kind.String() + fieldSeparator + strings.Join(args, fieldSeparator)
}

// Decode interpreta um frame bruto vindo da conexão.
// Espaços em branco no final são tolerados. Um frame vazio é malformado.
// Um tipo desconhecido NÃO é um erro: vira KindUnknown e o chamador decide
// (o contrato é logar e ignorar).
func Decode(raw string) (Frame, error) {
	raw = strings.TrimRight(raw, " \t\r\n")
	if raw == "" {
		return Frame{}, ErrMalformedFrame
	}

	parts := strings.Split(raw, fieldSeparator)
	kind, ok := tagKinds[parts[0]]
	if !ok {
		return Frame{Kind: KindUnknown, Args: parts}, nil
	}
	return Frame{Kind: kind, Args: parts[1:]}, nil
}

// EncodeFinalScores monta o payload multi-linha do placar final:
//
//	FinalScores-
//	alice: 225
//	bob: 0
//
// Cada linha do ranking já vem formatada pelo chamador.
func EncodeFinalScores(rows []string) string {
	return finalScoresTag + "\n" + strings.Join(rows, "\n")
}

// FormatScoreRow formata uma linha do ranking no formato do placar.
func FormatScoreRow(username string, assets int) string {
	return fmt.Sprintf("%s: %d", username, assets)
}

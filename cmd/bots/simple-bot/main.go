// Bot de carga: um jogador headless que joga uma sessão inteira do começo
// ao fim. Suba três deles contra um servidor para ver o fluxo completo.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net"
	"os"
	"strings"
	"time"

	"mercadinho/internal/game/inventory"
	"mercadinho/internal/session"
)

const readTimeout = 60 * time.Second

func main() {
	addr := os.Getenv("BOT_SERVER_ADDR")
	if addr == "" {
		addr = "localhost:8080"
	}
	username := fmt.Sprintf("bot-%d", rand.Intn(10000))
	if len(os.Args) > 1 {
		username = os.Args[1]
	}

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		log.Fatalf("FAIL: não conectou em %s: %v", addr, err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	// --- Etapa 1: admissão e registro ---
	line := mustReadLine(conn, reader)
	if strings.HasPrefix(line, "PlayerLimitReached") {
		log.Printf("mesa cheia: %s", line)
		return
	}
	sendLine(conn, username)

	// --- Etapa 2: espera pelos outros jogadores ---
	for {
		line = mustReadLine(conn, reader)
		if line == "AllPlayersConnected" {
			break
		}
		log.Printf("lobby: %s", line)
	}
	log.Printf("%s: o jogo começou", username)

	// --- Etapa 3: compras até o orçamento apertar ---
	sendLine(conn, "GetInventory")
	list := mustReadInventory(conn, reader)
	log.Printf("%s: lista pessoal com %d itens", username, len(list))

	budget := session.StartingBudget
	itemsBought := 0

	for attempts := 0; attempts < 20 && len(list) > 0; attempts++ {
		pick := list[rand.Intn(len(list))]
		if pick.Price > budget {
			continue
		}

		sendLine(conn, fmt.Sprintf("UpdateInventory:%s:%d", pick.Name, 1))
		reply := mustReadLine(conn, reader)
		if strings.HasPrefix(reply, "PurchaseFailed") {
			log.Printf("%s: compra recusada: %s", username, reply)
			continue
		}

		budget -= pick.Price
		itemsBought++
		list = parseInventory(reply)

		// Um jogador de verdade pensa entre uma compra e outra.
		time.Sleep(time.Duration(100+rand.Intn(200)) * time.Millisecond)
	}

	// --- Etapa 4: relatório final e placar ---
	sendLine(conn, fmt.Sprintf("FinalList:%s:%d:%d", username, budget, itemsBought))
	line = mustReadLine(conn, reader)
	if !strings.HasPrefix(line, "FinalScores-") {
		log.Fatalf("FAIL: esperava o placar, veio %q", line)
	}
	fmt.Println("=== PLACAR FINAL ===")
	for i := 0; i < session.MaxPlayers; i++ {
		fmt.Println(mustReadLine(conn, reader))
	}
}

func sendLine(conn net.Conn, line string) {
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		log.Fatalf("FAIL: escrita caiu: %v", err)
	}
}

func mustReadLine(conn net.Conn, reader *bufio.Reader) string {
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	line, err := reader.ReadString('\n')
	if err != nil {
		log.Fatalf("FAIL: leitura caiu: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func mustReadInventory(conn net.Conn, reader *bufio.Reader) []inventory.PersonalItem {
	return parseInventory(mustReadLine(conn, reader))
}

func parseInventory(raw string) []inventory.PersonalItem {
	var list []inventory.PersonalItem
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		log.Fatalf("FAIL: inventário ilegível: %v (%q)", err, raw)
	}
	return list
}

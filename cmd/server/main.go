package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"mercadinho/internal/cluster"
	"mercadinho/internal/events"
	"mercadinho/internal/game/inventory"
	"mercadinho/internal/network"
	"mercadinho/internal/session"
)

const defaultCatalogPath = "grocerylist.csv"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <port>\n", os.Args[0])
	os.Exit(1)
}

func main() {
	// A linha de comando é só a porta. O resto (catálogo, NATS, Consul,
	// gateway websocket, timeout do lobby) vem do ambiente.
	if len(os.Args) != 2 {
		usage()
	}
	port, err := strconv.Atoi(os.Args[1])
	if err != nil {
		usage()
	}

	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = defaultCatalogPath
	}
	catalog, err := inventory.LoadCatalog(catalogPath)
	if err != nil {
		log.Fatalf("Não foi possível carregar o catálogo %s: %v", catalogPath, err)
	}

	var pub events.Publisher = events.NopPublisher{}
	if url := os.Getenv("NATS_URL"); url != "" {
		natsPub, err := events.NewNATSPublisher(url)
		if err != nil {
			log.Printf("[Main] NATS indisponível, seguindo sem eventos: %v", err)
		} else {
			pub = natsPub
			defer pub.Close()
		}
	}

	var regOpts []session.RegistryOpt
	if raw := os.Getenv("LOBBY_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			log.Fatalf("LOBBY_TIMEOUT_SECONDS inválido: %q", raw)
		}
		regOpts = append(regOpts, session.WithLobbyTimeout(time.Duration(seconds)*time.Second))
	}

	manager := session.NewManager(catalog, pub, regOpts...)
	server := network.NewServer(manager)

	if wsAddr := os.Getenv("WS_ADDR"); wsAddr != "" {
		go func() {
			if err := server.ListenWebSocket(wsAddr); err != nil {
				log.Printf("[Main] gateway websocket caiu: %v", err)
			}
		}()
	}

	if os.Getenv("CONSUL_HTTP_ADDR") != "" {
		healthPort := port + 1
		if raw := os.Getenv("HEALTH_PORT"); raw != "" {
			if healthPort, err = strconv.Atoi(raw); err != nil {
				log.Fatalf("HEALTH_PORT inválido: %q", raw)
			}
		}
		go func() {
			if err := cluster.ServeHealth(healthPort); err != nil {
				log.Printf("[Main] endpoint de saúde caiu: %v", err)
			}
		}()
		if err := cluster.RegisterService("mercadinho", port, healthPort); err != nil {
			log.Printf("[Main] registro no Consul falhou: %v", err)
		}
	}

	if err := server.Listen(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatalf("Não foi possível iniciar o servidor: %v", err)
	}
}

package cluster

import (
	"fmt"
	"net/http"
)

// NewHealthHandler devolve o liveness check consumido pelo Consul: só
// confirma que o processo está de pé e respondendo HTTP.
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "Service is alive.")
	}
}

// ServeHealth expõe /health na porta dada. Bloqueante; rode em goroutine.
func ServeHealth(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", NewHealthHandler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

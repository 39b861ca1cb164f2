package cluster

import (
	"fmt"
	"os"

	consul "github.com/hashicorp/consul/api"
)

// RegisterService registra este servidor no Consul, quando um agente está
// configurado via CONSUL_HTTP_ADDR. O check de saúde aponta para o endpoint
// HTTP servido por ServeHealth.
func RegisterService(serviceName string, servicePort, healthPort int) error {
	config := consul.DefaultConfig()
	config.Address = os.Getenv("CONSUL_HTTP_ADDR")

	client, err := consul.NewClient(config)
	if err != nil {
		return fmt.Errorf("cluster: criar cliente consul: %w", err)
	}

	// O hostname dá um ID de serviço único por instância.
	hostname := os.Getenv("HOSTNAME")
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	registration := &consul.AgentServiceRegistration{
		ID:   fmt.Sprintf("%s-%s", serviceName, hostname),
		Name: serviceName,
		Port: servicePort,
		Check: &consul.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%d/health", hostname, healthPort),
			Timeout:  "5s",
			Interval: "10s",
			// Desregistra sozinho se ficar crítico por muito tempo.
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	if err := client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("cluster: registrar serviço: %w", err)
	}
	return nil
}

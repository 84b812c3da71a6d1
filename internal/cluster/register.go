package cluster

import (
	"fmt"
	"os"

	consul "github.com/hashicorp/consul/api"
)

// Registration describes this process to the Consul agent.
type Registration struct {
	Name string
	Port int
	// Host is how the agent reaches the health endpoint. Defaults to
	// $HOSTNAME, then os.Hostname.
	Host       string
	HealthPath string
}

func (r Registration) host() string {
	if r.Host != "" {
		return r.Host
	}
	if h := os.Getenv("HOSTNAME"); h != "" {
		return h
	}
	h, _ := os.Hostname()
	return h
}

// RegisterService registers the service with an HTTP check against its
// health endpoint and returns the service id to deregister with.
func RegisterService(client *consul.Client, r Registration) (string, error) {
	host := r.host()
	path := r.HealthPath
	if path == "" {
		path = "/health"
	}
	id := fmt.Sprintf("%s-%s", r.Name, host)

	reg := &consul.AgentServiceRegistration{
		ID:   id,
		Name: r.Name,
		Port: r.Port,
		Check: &consul.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d%s", host, r.Port, path),
			Timeout:                        "5s",
			Interval:                       "10s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := client.Agent().ServiceRegister(reg); err != nil {
		return "", fmt.Errorf("register %s in consul: %w", id, err)
	}
	return id, nil
}

func Deregister(client *consul.Client, serviceID string) error {
	if err := client.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("deregister %s: %w", serviceID, err)
	}
	return nil
}

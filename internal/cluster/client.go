// Package cluster connects the server to Consul: agent registration with an
// HTTP health check, and the KV store as a source for the card catalog.
package cluster

import (
	"fmt"
	"strings"

	consul "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// NewConsulClient tries each comma separated agent address in turn and
// returns a client for the first one that reports a raft leader.
func NewConsulClient(addrs string, log *zap.Logger) (*consul.Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, node := range strings.Split(addrs, ",") {
		node = strings.TrimSpace(node)
		if node == "" {
			continue
		}
		cfg := consul.DefaultConfig()
		cfg.Address = node

		client, err := consul.NewClient(cfg)
		if err != nil {
			log.Warn("consul client", zap.String("addr", node), zap.Error(err))
			continue
		}
		if _, err := client.Status().Leader(); err != nil {
			log.Warn("consul agent did not answer", zap.String("addr", node), zap.Error(err))
			continue
		}

		log.Info("connected to consul", zap.String("addr", node))
		return client, nil
	}
	return nil, fmt.Errorf("no consul agent available in %q", addrs)
}

package cluster

import (
	"fmt"

	consul "github.com/hashicorp/consul/api"
)

// LoadCatalogKV returns the raw card catalog stored under key.
func LoadCatalogKV(client *consul.Client, key string) ([]byte, error) {
	pair, _, err := client.KV().Get(key, nil)
	if err != nil {
		return nil, fmt.Errorf("read %s from consul kv: %w", key, err)
	}
	if pair == nil || len(pair.Value) == 0 {
		return nil, fmt.Errorf("consul kv key %s is empty", key)
	}
	return pair.Value, nil
}

package cluster

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	consul "github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAgent answers the handful of Consul HTTP endpoints the package uses.
type fakeAgent struct {
	mu         sync.Mutex
	registered map[string]consul.AgentServiceRegistration
	kv         map[string][]byte
}

func newFakeAgent(t *testing.T) (*fakeAgent, string) {
	t.Helper()
	a := &fakeAgent{registered: make(map[string]consul.AgentServiceRegistration), kv: make(map[string][]byte)}
	srv := httptest.NewServer(http.HandlerFunc(a.serve))
	t.Cleanup(srv.Close)
	return a, strings.TrimPrefix(srv.URL, "http://")
}

func (a *fakeAgent) serve(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case r.URL.Path == "/v1/status/leader":
		_ = json.NewEncoder(w).Encode("10.0.0.1:8300")
	case r.URL.Path == "/v1/agent/service/register":
		var reg consul.AgentServiceRegistration
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &reg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.registered[reg.ID] = reg
	case strings.HasPrefix(r.URL.Path, "/v1/agent/service/deregister/"):
		delete(a.registered, strings.TrimPrefix(r.URL.Path, "/v1/agent/service/deregister/"))
	case strings.HasPrefix(r.URL.Path, "/v1/kv/"):
		key := strings.TrimPrefix(r.URL.Path, "/v1/kv/")
		v, ok := a.kv[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode([]consul.KVPair{{Key: key, Value: v}})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestNewConsulClientSkipsDeadAgents(t *testing.T) {
	_, addr := newFakeAgent(t)

	client, err := NewConsulClient("127.0.0.1:1, "+addr, nil)
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewConsulClient("127.0.0.1:1", nil)
	assert.Error(t, err)
}

func TestRegisterAndDeregister(t *testing.T) {
	agent, addr := newFakeAgent(t)
	client, err := NewConsulClient(addr, nil)
	require.NoError(t, err)

	id, err := RegisterService(client, Registration{Name: "souls-session", Port: 8080, Host: "node-a"})
	require.NoError(t, err)
	assert.Equal(t, "souls-session-node-a", id)

	agent.mu.Lock()
	reg, ok := agent.registered[id]
	agent.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, 8080, reg.Port)
	require.NotNil(t, reg.Check)
	assert.Equal(t, "http://node-a:8080/health", reg.Check.HTTP)

	require.NoError(t, Deregister(client, id))
	agent.mu.Lock()
	assert.Empty(t, agent.registered)
	agent.mu.Unlock()
}

func TestLoadCatalogKV(t *testing.T) {
	agent, addr := newFakeAgent(t)
	agent.kv["souls/catalog"] = []byte(`[{"id":"penny"}]`)
	client, err := NewConsulClient(addr, nil)
	require.NoError(t, err)

	raw, err := LoadCatalogKV(client, "souls/catalog")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"penny"}]`, string(raw))

	_, err = LoadCatalogKV(client, "souls/missing")
	assert.Error(t, err)
}

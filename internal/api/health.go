package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"souls/internal/game/card"
	"souls/internal/session"
)

// Check reports a failing dependency by returning an error.
type Check func() error

// Health answers GET /health from a set of named checks.
type Health struct {
	mu     sync.RWMutex
	checks map[string]Check
}

type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func NewHealth() *Health {
	return &Health{checks: make(map[string]Check)}
}

func (h *Health) Add(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Report runs every check. Status is "ok" only when all of them pass.
func (h *Health) Report() HealthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rep := HealthReport{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check(); err != nil {
			rep.Status = "unavailable"
			rep.Checks[name] = err.Error()
			continue
		}
		rep.Checks[name] = "ok"
	}
	return rep
}

// RegisterHealth mounts /health on r. Consul polls it for the service check.
func RegisterHealth(r gin.IRouter, h *Health) {
	r.GET("/health", func(c *gin.Context) {
		rep := h.Report()
		code := http.StatusOK
		if rep.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, rep)
	})
}

// CatalogCheck fails when the catalog cannot fill a loot deck.
func CatalogCheck(c *card.Catalog) Check {
	return func() error {
		if c == nil || c.DeckSize() == 0 {
			return errors.New("empty loot deck")
		}
		return nil
	}
}

// SessionsCheck fails while the registry holds sessions that already stopped.
func SessionsCheck(reg *session.Registry) Check {
	return func() error {
		if stale := reg.Stale(); len(stale) > 0 {
			return fmt.Errorf("stopped sessions still registered: %s", strings.Join(stale, ", "))
		}
		return nil
	}
}

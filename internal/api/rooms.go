// Package api serves read-only HTTP views of the lobby and the live
// sessions for operators.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"souls/internal/apperr"
	"souls/internal/lobby"
)

// Rooms is what the API reads from the lobby.
type Rooms interface {
	Rooms() []lobby.Summary
	Room(roomID string) (lobby.Summary, error)
	Counts() map[lobby.State]int
}

// Counter reports a live count, such as open connections or sessions.
type Counter interface {
	Count() int
}

// CounterFunc adapts a function to Counter.
type CounterFunc func() int

func (f CounterFunc) Count() int { return f() }

type Stats struct {
	Connections int                 `json:"connections"`
	Sessions    int                 `json:"sessions"`
	Rooms       map[lobby.State]int `json:"rooms"`
}

type errorResponse struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

type handler struct {
	rooms    Rooms
	conns    Counter
	sessions Counter
}

// RegisterRoutes mounts /api/rooms, /api/rooms/:id and /api/stats on r.
func RegisterRoutes(r gin.IRouter, rooms Rooms, conns, sessions Counter) {
	h := &handler{rooms: rooms, conns: conns, sessions: sessions}
	g := r.Group("/api")
	g.GET("/rooms", h.listRooms)
	g.GET("/rooms/:id", h.getRoom)
	g.GET("/stats", h.stats)
}

func (h *handler) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.rooms.Rooms())
}

func (h *handler) getRoom(c *gin.Context) {
	room, err := h.rooms.Room(c.Param("id"))
	if err != nil {
		kind := apperr.KindOf(err)
		c.JSON(kind.Code(), errorResponse{ErrorType: string(kind), Message: apperr.Message(err)})
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, Stats{
		Connections: h.conns.Count(),
		Sessions:    h.sessions.Count(),
		Rooms:       h.rooms.Counts(),
	})
}

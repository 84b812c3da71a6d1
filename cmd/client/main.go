// Command client is a line-oriented terminal client for the session server.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"souls/internal/protocol"
	"souls/internal/reliable"
)

// conn serialises writes; gorilla allows one concurrent writer.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) send(env protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(env)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	addrs := []string{"localhost:8080"}
	if env := os.Getenv("SERVER_ADDRS"); env != "" {
		addrs = strings.Split(env, ",")
	}

	ws := dial(addrs)
	if ws == nil {
		log.Fatalf("no server reachable in %v", addrs)
	}
	defer ws.Close()
	c := &conn{ws: ws}

	done := make(chan struct{})
	go readLoop(c, done)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		printHelp()
		for scanner.Scan() {
			handleUserInput(c, scanner.Text())
		}
	}()

	select {
	case <-done:
		log.Println("disconnected from server")
	case <-interrupt:
		log.Println("interrupted, closing connection")
		c.mu.Lock()
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.mu.Unlock()
	}
}

// dial tries every address in turn and returns the first live connection.
func dial(addrs []string) *websocket.Conn {
	for _, addr := range addrs {
		u := url.URL{Scheme: "ws", Host: strings.TrimSpace(addr), Path: "/ws"}
		log.Printf("connecting to %s", u.String())

		ws, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
		if err == nil {
			return ws
		}
		log.Printf("connect to %s failed: %v", addr, err)
		if resp != nil {
			log.Printf("response status: %s", resp.Status)
		}
	}
	return nil
}

// readLoop acks every frame and prints messages in sequence order.
func readLoop(c *conn, done chan struct{}) {
	defer close(done)
	recv := reliable.NewReceiver()
	for {
		var env protocol.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("read error: %v", err)
			}
			return
		}
		if env.Seq > 0 {
			if err := c.send(protocol.Envelope{Type: protocol.TypeAck, Seq: env.Seq}); err != nil {
				log.Printf("ack %d: %v", env.Seq, err)
			}
		}
		for _, msg := range recv.Receive(env) {
			printServerMessage(msg)
		}
	}
}

func handleUserInput(c *conn, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if line == "help" {
		printHelp()
		return
	}
	env, err := parseCommand(line)
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := c.send(env); err != nil {
		log.Printf("send: %v", err)
	}
}

func printServerMessage(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeError:
		var e protocol.Error
		if json.Unmarshal(env.Payload, &e) == nil {
			fmt.Printf("\n[error %d %s] %s\n", e.Code, e.ErrorType, e.Message)
			return
		}
	case protocol.TypeChatMessage:
		var m protocol.ChatMessage
		if json.Unmarshal(env.Payload, &m) == nil {
			fmt.Printf("\n<%s> %s\n", m.PlayerName, m.Message)
			return
		}
	case protocol.TypePong:
		fmt.Println("\npong")
		return
	}

	if len(env.Payload) == 0 {
		fmt.Printf("\n%s\n", env.Type)
		return
	}
	var data any
	if err := json.Unmarshal(env.Payload, &data); err != nil {
		fmt.Printf("\n%s: %s\n", env.Type, string(env.Payload))
		return
	}
	pretty, _ := json.MarshalIndent(data, "", "  ")
	fmt.Printf("\n%s:\n%s\n", env.Type, pretty)
}

func printHelp() {
	fmt.Print(`
--- Commands ---
create <room name> <player name>
join <room id> <player name>
leave | ready | destroy | ping
chat <message>
pass
play <card id>
help
----------------
`)
}

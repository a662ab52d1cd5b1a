// ABOUTME: Minimal fake agent for E2E testing — registers over the websocket channel and answers status requests.
// ABOUTME: Usage: fake-agent [-addr localhost:8080] [-name "miner-1"]

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

// envelope mirrors the hub's wire framing.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "hub address")
	name := flag.String("name", "fake-agent", "agent name")
	flag.Parse()

	if err := run(*addr, *name); err != nil {
		log.Fatal(err)
	}
}

func run(addr, name string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dialing hub: %w", err)
	}
	defer conn.Close()

	// Close the socket when interrupted so ReadMessage unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := send(conn, "register-agents", []string{name}); err != nil {
		return fmt.Errorf("registering: %w", err)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil // graceful shutdown
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("unparseable frame: %v", err)
			continue
		}

		switch env.Event {
		case "register-agents-success":
			log.Printf("registered as %s", name)
			if err := send(conn, "login-agent", map[string]string{"name": name, "id": "1"}); err != nil {
				return fmt.Errorf("logging in: %w", err)
			}

		case "register-agents-error":
			var payload struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(env.Data, &payload)
			return fmt.Errorf("registration rejected: %s", payload.Message)

		case "request-status":
			var payload struct {
				RequestID string `json:"requestId"`
			}
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				continue
			}
			reply := map[string]any{
				"requestId": payload.RequestID,
				"status":    fakeSnapshot(name),
			}
			if err := send(conn, "status-response", reply); err != nil {
				log.Printf("status reply error: %v", err)
			}

		case "send-message":
			var payload struct {
				AgentName string `json:"agentName"`
				Message   string `json:"message"`
			}
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				continue
			}
			if payload.AgentName != name {
				continue
			}
			log.Printf("received message: %s", payload.Message)

		case "stop-agent", "shutdown":
			log.Printf("received %s, disconnecting", env.Event)
			_ = send(conn, "logout-agent", map[string]string{"name": name})
			return nil
		}
	}
}

func send(conn *websocket.Conn, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(envelope{Event: event, Data: data})
}

// fakeSnapshot fabricates a plausible in-game state.
func fakeSnapshot(name string) map[string]any {
	return map[string]any{
		"name":       name,
		"status":     "idle",
		"health":     20.0,
		"maxHealth":  20.0,
		"hunger":     float64(14 + rand.Intn(7)),
		"experience": rand.Intn(100),
		"gameMode":   "survival",
		"dimension":  "overworld",
		"biome":      "plains",
		"coordinates": map[string]int{
			"x": rand.Intn(200) - 100,
			"y": 64,
			"z": rand.Intn(200) - 100,
		},
		"stats": map[string]any{
			"totalPlayTime":  int64(time.Now().Unix() % 100000),
			"tasksCompleted": rand.Intn(50),
			"blocksPlaced":   rand.Intn(500),
			"blocksBroken":   rand.Intn(500),
		},
	}
}

// Command client is a manual-testing console for the relay. It speaks the
// JSON wire protocol over a single websocket connection.
//
// Commands:
//
//	new                create a game and print the join link
//	join KEY           join a game by key
//	rejoin KEY         reconnect to a game by key
//	select SQUARE      list legal destinations from a square index
//	play FROM TO       play a move (square indices, a1=0)
//	piece SYMBOL       answer a promotion prompt
//	resize             request a board snapshot
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

func send(c *websocket.Conn, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("write error: %v", err)
	}
}

func main() {
	addr := flag.String("addr", "localhost:8001", "relay address")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- %s", message)
		}
	}()

	// The relay needs to know which side we play; remember it from init.
	player := true

	reader := bufio.NewScanner(os.Stdin)
	for reader.Scan() {
		select {
		case <-done:
			return
		default:
		}

		fields := strings.Fields(reader.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "new":
			send(c, map[string]interface{}{"type": "new"})
		case "join", "rejoin":
			if len(fields) < 2 {
				log.Println("usage: join KEY")
				continue
			}
			msg := map[string]interface{}{"type": "init", "join": fields[1]}
			if fields[0] == "rejoin" {
				msg["reconnecting"] = true
			}
			send(c, msg)
		case "white":
			player = true
		case "black":
			player = false
		case "select":
			if len(fields) < 2 {
				log.Println("usage: select SQUARE")
				continue
			}
			square, _ := strconv.Atoi(fields[1])
			send(c, map[string]interface{}{"type": "select", "square": square, "player": player})
		case "play":
			if len(fields) < 3 {
				log.Println("usage: play FROM TO")
				continue
			}
			from, _ := strconv.Atoi(fields[1])
			to, _ := strconv.Atoi(fields[2])
			send(c, map[string]interface{}{
				"type": "play", "start square": from, "end square": to, "player": player,
			})
		case "piece":
			if len(fields) < 2 {
				log.Println("usage: piece SYMBOL")
				continue
			}
			send(c, map[string]interface{}{"piece": fields[1]})
		case "resize":
			send(c, map[string]interface{}{"type": "resize"})
		case "quit":
			return
		default:
			log.Printf("unknown command %q", fields[0])
		}
	}
}

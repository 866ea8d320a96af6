// Command ws-tail connects to the notification channel and prints every
// event it receives until interrupted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	wsHub "github.com/aibymlMelissa/aibyml-business/internal/interfaces/websocket"
)

func main() {
	url := flag.String("url", "ws://localhost:3000/ws", "Notification channel URL")
	only := flag.String("type", "", "Print only events of this type")
	origin := flag.String("origin", "http://localhost:3001", "Origin header sent on the handshake")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	if *origin != "" {
		header.Set("Origin", *origin)
	}

	conn, resp, err := dialer.DialContext(ctx, *url, header)
	if err != nil {
		if resp != nil {
			fmt.Fprintf(os.Stderr, "ERROR: handshake failed with %s: %v\n", resp.Status, err)
		} else {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		}
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("Connected to %s\n", *url)

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		var msg wsHub.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				fmt.Println("Disconnected")
				return
			}
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		if *only != "" && msg.Type != *only {
			continue
		}

		data, err := json.Marshal(msg.Data)
		if err != nil {
			data = []byte(fmt.Sprintf("%v", msg.Data))
		}
		fmt.Printf("%s  %-20s %s\n", msg.Timestamp, msg.Type, data)
	}
}

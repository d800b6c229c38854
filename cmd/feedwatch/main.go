// Command feedwatch connects one or more moderator clients to the live
// moderation feed and prints or counts the events they receive.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"mybuddy/internal/middleware"

	"github.com/gorilla/websocket"
)

// Metrics tracks what the watchers saw.
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	EventsReceived       int64
}

// feedEvent mirrors the frames the moderation feed pushes.
type feedEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	host := flag.String("host", "localhost:8080", "API server host")
	secure := flag.Bool("tls", false, "Use wss://")
	token := flag.String("token", "", "Moderator JWT; minted from -user-id and -secret when empty")
	userID := flag.Uint("user-id", 1, "Moderator user ID used to mint a token")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "JWT secret used to mint a token")
	watchers := flag.Int("watchers", 1, "Number of concurrent feed connections")
	duration := flag.Duration("duration", 0, "Stop after this long (0 = until interrupted)")
	flag.Parse()

	tok := *token
	if tok == "" {
		if *secret == "" {
			log.Fatal("either -token or -secret is required")
		}
		var err error
		tok, err = middleware.GenerateToken(*secret, *userID, time.Hour)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	target := feedURL(*host, tok, *secure)
	var (
		m  Metrics
		wg sync.WaitGroup
	)
	for i := 0; i < *watchers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			atomic.AddInt64(&m.ConnectionsAttempted, 1)
			err := watch(ctx, target, func(ev feedEvent) {
				atomic.AddInt64(&m.EventsReceived, 1)
				if *watchers == 1 {
					fmt.Printf("%s %s %s\n", time.Now().Format(time.RFC3339), ev.Type, ev.Payload)
				}
			}, func() { atomic.AddInt64(&m.ConnectionsSuccess, 1) })
			if err != nil {
				atomic.AddInt64(&m.ConnectionsFailed, 1)
				log.Printf("watcher %d: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	log.Printf("connections: attempted=%d ok=%d failed=%d events=%d",
		m.ConnectionsAttempted, m.ConnectionsSuccess, m.ConnectionsFailed, m.EventsReceived)
}

func feedURL(host, token string, secure bool) string {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: host, Path: "/api/ws/reports", RawQuery: url.Values{"token": {token}}.Encode()}
	return u.String()
}

// watch reads feed events from target until ctx ends or the server closes the
// connection. A close initiated by ctx is not an error.
func watch(ctx context.Context, target string, onEvent func(feedEvent), onConnect func()) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if onConnect != nil {
		onConnect()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		var ev feedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("skipping malformed frame: %v", err)
			continue
		}
		if ev.Type == "" {
			continue
		}
		onEvent(ev)
	}
}

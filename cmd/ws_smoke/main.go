package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"ton_miner/internal/logger"
	"ton_miner/internal/service"
	"ton_miner/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

// Dials /ws as an existing account and prints the frames it gets back.
func main() {
	tgID := flag.Int64("tg", 1234567890, "telegram user id")
	host := flag.String("host", "", "server host:port (default 127.0.0.1:$APP_PORT)")
	wait := flag.Duration("wait", 5*time.Second, "how long to listen for pushes")
	flag.Parse()

	_ = godotenv.Load()
	logger.Init("info", false)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET not set")
	}
	service.InitJWT(secret, time.Hour)

	if *host == "" {
		port := os.Getenv("APP_PORT")
		if port == "" {
			port = "8080"
		}
		// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
		*host = "127.0.0.1:" + port
	}

	token, err := service.GenerateJWT(*tgID)
	if err != nil {
		logger.Fatal("gen token", "error", err)
	}
	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Fatal("dial", "url", u.Host, "error", err)
	}
	defer conn.Close()

	read := func(deadline time.Time) bool {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return false
		}
		var env ws.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			logger.Warn("bad frame", "raw", string(msg))
			return true
		}
		fmt.Printf("%s: %s\n", env.Type, string(env.Data))
		return true
	}

	if !read(time.Now().Add(3 * time.Second)) {
		logger.Fatal("no initial snapshot")
	}

	for _, t := range []string{ws.MsgPing, ws.MsgRefresh} {
		if err := conn.WriteJSON(map[string]string{"type": t}); err != nil {
			logger.Fatal("write", "type", t, "error", err)
		}
		read(time.Now().Add(3 * time.Second))
	}

	until := time.Now().Add(*wait)
	for time.Now().Before(until) && read(until) {
	}
	logger.Info("smoke test finished")
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"ROOM_SERVER_URL,default=http://localhost:8080"`
	Room      string `env:"ROOM_ADDRESS,required=true"`
	Identity  string `env:"ROOM_IDENTITY,required=true"`
	Nickname  string `env:"ROOM_NICKNAME,required=true"`
	LogLevel  string `env:"LOG_LEVEL,required=true"`
}

// wireEvent covers every event shape the stream can carry; unused
// fields stay at their zero value.
type wireEvent struct {
	Type        string `json:"type"`
	Nickname    string `json:"nickname"`
	Occupant    string `json:"occupant"`
	Affiliation string `json:"affiliation"`
	Role        string `json:"role"`
	Available   bool   `json:"available"`
	Statuses    []int  `json:"statuses"`
	Reason      string `json:"reason"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v", err)
	}
	os.Exit(code)
}

// run handles the stream lifecycle, configuration loading, and presence
// rendering. This pattern ensures clean resource management and error
// propagation.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the presence stream; the server joins us into the room as
	// part of this call.
	streamURL := fmt.Sprintf("%s/v1/rooms/%s/stream?identity=%s&nickname=%s",
		config.ServerURL,
		url.PathEscape(config.Room),
		url.QueryEscape(config.Identity),
		url.QueryEscape(config.Nickname),
	)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return exitRuntime, err
	}
	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return exitRuntime, fmt.Errorf("join refused: %s", resp.Status)
	}

	log.Info(fmt.Sprintf(">>> Connected! Listening to %s as %s (Ctrl+C to quit)...",
		config.Room, config.Nickname))

	// 4. Event reception loop, until shutdown or server close.
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimPrefix(scanner.Text(), "data: ")
		if strings.TrimSpace(line) == "" {
			continue
		}
		var evt wireEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			log.Warn("Skipping undecodable event", "error", err)
			continue
		}
		render(evt)
	}
	if ctx.Err() != nil {
		log.Info("Stopping client...")
		return exitOK, nil
	}
	if err := scanner.Err(); err != nil {
		return exitRuntime, fmt.Errorf("stream error: %w", err)
	}
	return exitOK, nil
}

func render(evt wireEvent) {
	switch evt.Type {
	case "presence":
		verb := color.Green.Sprint("is here")
		if !evt.Available {
			verb = color.Red.Sprint("left")
			if evt.Reason != "" {
				verb += fmt.Sprintf(" (%s)", evt.Reason)
			}
		}
		fmt.Printf("%s [%s/%s] %s %v\n",
			color.Cyan.Sprint(evt.Nickname), evt.Affiliation, evt.Role, verb, evt.Statuses)
	case "config":
		fmt.Printf("** room configuration changed %v\n", evt.Statuses)
	case "destroyed":
		fmt.Printf("** room destroyed: %s\n", evt.Reason)
	case "joined":
		fmt.Printf("** joined as %s (%s)\n", color.Cyan.Sprint(evt.Nickname), evt.Role)
	}
}

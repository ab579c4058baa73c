package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/ayushsreejith06/max/internal/client"
	"github.com/ayushsreejith06/max/internal/events"
)

var watchCmd = &cobra.Command{
	Use:     "watch [topic-pattern...]",
	Short:   "Stream engine events as they happen",
	GroupID: "views",
	Long: `Stream engine events as they happen.

Patterns use NATS syntax: "*" matches one token and ">" the rest, for
example "max.discussion.*" or "max.item.>". With no pattern every event
is shown.

Events come from the server's SSE stream. With --nats (or MAX_NATS_URL)
they are read straight from the NATS bus instead, and --sector keeps only
one sector's events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		sector, _ := cmd.Flags().GetString("sector")
		if sector != "" && natsURL == "" {
			return errors.New("--sector requires --nats")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if natsURL != "" {
			return watchNATS(ctx, natsURL, sector, args)
		}
		return watchSSE(ctx, args)
	},
}

// watchSSE follows the server stream, reconnecting with backoff and
// resuming from the last event seen.
func watchSSE(ctx context.Context, topics []string) error {
	var lastID string
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 15 * time.Second

	for {
		err := maxClient.Stream(ctx, topics, lastID, func(ev client.StreamEvent) error {
			b.Reset()
			if ev.ID != "" {
				lastID = ev.ID
			}
			printEvent(ev.Topic, ev.Data)
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return err
		}
		wait := b.NextBackOff()
		if err != nil {
			log.Printf("stream: %v (retrying in %s)", err, wait.Round(time.Millisecond))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// watchNATS subscribes to the event bus directly. A non-empty sector drops
// events stamped with any other sector.
func watchNATS(ctx context.Context, natsURL, sector string, patterns []string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	if len(patterns) == 0 {
		patterns = []string{events.AllTopics}
	}
	merged := make(chan events.Message, 64)
	for _, p := range patterns {
		ch, cancel, err := sub.Subscribe(p)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", p, err)
		}
		defer cancel()
		go func() {
			for m := range ch {
				select {
				case merged <- m:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-merged:
			if sector != "" && m.Sector != sector {
				continue
			}
			printEvent(m.Topic, m.Data)
		}
	}
}

func printEvent(topic string, data []byte) {
	if jsonOutput {
		out := struct {
			Topic string          `json:"topic"`
			Data  json.RawMessage `json:"data"`
		}{topic, json.RawMessage(data)}
		line, err := json.Marshal(out)
		if err != nil {
			return
		}
		fmt.Println(string(line))
		return
	}
	fmt.Printf("%s  %s  %s\n",
		time.Now().Format("15:04:05"),
		statusText(strings.TrimPrefix(topic, "max.")),
		truncate(strings.TrimSpace(string(data)), 120))
}

func init() {
	watchCmd.Flags().String("nats", os.Getenv("MAX_NATS_URL"), "read events from this NATS server instead of the API")
	watchCmd.Flags().String("sector", "", "with --nats, only show events for this sector")
}

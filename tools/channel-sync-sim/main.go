package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Publishes a synthetic channel.reservation.synced.v1 event, for exercising
// the availability-service consumer without a real channel manager.
func main() {
	var (
		brokers = flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma separated kafka brokers")
		topic   = flag.String("topic", getenv("KAFKA_TOPIC", "channel.reservation.synced.v1"), "topic to publish on")
		chalet  = flag.String("chalet-id", getenv("CHALET_ID", ""), "chalet id")
		slot    = flag.String("slot-id", getenv("SLOT_ID", ""), "optional slot id (empty blocks the whole day)")
		dates   = flag.String("dates", "", "comma separated YYYY-MM-DD dates")
		action  = flag.String("action", "blocked", "blocked or released")
		source  = flag.String("source", "channel-sync-sim", "source channel name")
	)
	flag.Parse()

	if strings.TrimSpace(*chalet) == "" {
		fatal("CHALET_ID is required")
	}
	if strings.TrimSpace(*dates) == "" {
		fatal("at least one date is required")
	}
	var dateList []string
	for _, d := range strings.Split(*dates, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			fatal("invalid date " + d)
		}
		dateList = append(dateList, d)
	}

	payload, err := json.Marshal(map[string]any{
		"chalet_id": *chalet,
		"dates":     dateList,
		"slot_id":   strings.TrimSpace(*slot),
		"action":    *action,
		"source":    *source,
	})
	if err != nil {
		fatal(err.Error())
	}

	eventID := uuid.NewString()
	writer := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:    *topic,
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(*chalet),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(*topic)},
		},
	})
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("published event_id=%s topic=%s dates=%s\n", eventID, *topic, strings.Join(dateList, ","))
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}

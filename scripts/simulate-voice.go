package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/vogiaan1904/vcping/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/vcping/internal/domain"
	pkgKafka "github.com/vogiaan1904/vcping/pkg/kafka"
	pkgLog "github.com/vogiaan1904/vcping/pkg/logger"
)

var (
	brokers   = flag.String("brokers", "localhost:9092", "Comma-separated Kafka brokers")
	community = flag.String("community", "", "Community (guild) ID (required)")
	channel   = flag.String("channel", "", "Voice channel ID (required)")
	numUsers  = flag.Int("users", 3, "Number of users joining the channel")
	joinGap   = flag.Duration("join-gap", 2*time.Second, "Time between joins")
	hold      = flag.Duration("hold", 90*time.Second, "How long the channel stays occupied after the last join")
	flap      = flag.Bool("flap", false, "Join and leave within a few seconds, which must not notify anyone")
)

func main() {
	flag.Parse()

	if *community == "" || *channel == "" {
		fmt.Println("Error: --community and --channel flags are required")
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted, sending leaves...")
		cancel()
	}()

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{Level: "info", Mode: "development", Encoding: "console"})

	syncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
		Brokers:      strings.Split(*brokers, ","),
		RetryMax:     3,
		RequiredAcks: 1,
	})
	if err != nil {
		fmt.Printf("Failed to connect to Kafka: %v\n", err)
		os.Exit(1)
	}
	prod := producer.NewProducer(syncProd, l)
	defer prod.Close()

	users := make([]string, *numUsers)
	for i := range users {
		users[i] = fmt.Sprintf("sim-%s", uuid.NewString()[:8])
	}

	if *flap {
		users = users[:1]
		*hold = 3 * time.Second
	}

	fmt.Printf("Simulating %d users in channel %s of community %s\n", len(users), *channel, *community)

	for i, u := range users {
		if err := publish(ctx, prod, u, "", *channel); err != nil {
			fmt.Printf("Failed to publish join for %s: %v\n", u, err)
			os.Exit(1)
		}
		fmt.Printf("  %s joined\n", u)
		if i < len(users)-1 {
			sleep(ctx, *joinGap)
		}
	}

	fmt.Printf("Holding for %s...\n", *hold)
	sleep(ctx, *hold)

	// Leaves go out even after an interrupt so the channel ends up empty.
	for _, u := range users {
		if err := publish(context.Background(), prod, u, *channel, ""); err != nil {
			fmt.Printf("Failed to publish leave for %s: %v\n", u, err)
			continue
		}
		fmt.Printf("  %s left\n", u)
	}

	fmt.Println("Done")
}

func publish(ctx context.Context, prod producer.Producer, userID, from, to string) error {
	return prod.PublishVoiceState(ctx, domain.RawVoiceState{
		CommunityID:       *community,
		UserID:            userID,
		PreviousChannelID: from,
		ChannelID:         to,
		Member:            domain.Profile{UserID: userID, DisplayName: userID},
		ObservedAt:        time.Now(),
	})
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

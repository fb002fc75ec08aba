package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mobiledjay/backend/internal/config"
	model "github.com/mobiledjay/backend/internal/model/catalogue"
	"github.com/mobiledjay/backend/internal/model/djay"
	"github.com/mobiledjay/backend/internal/service/catalogue"
	"github.com/mobiledjay/backend/internal/service/delivery"
)

var (
	customerName string
	endpoint     string
	timeout      time.Duration
	maxRedirects int
	dryRun       bool
)

var rootCmd = &cobra.Command{
	Use:   "deliverytester",
	Short: "Send one submission to the DJ acceptance endpoint",
	Long: `deliverytester formats a song request, karaoke request or message the
same way the server does and relays it once, printing the outcome.`,
	SilenceUsage: true,
}

var messageCmd = &cobra.Command{
	Use:   "message [text]",
	Short: "Send a free-text message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(cmd.Context(), args[0])
	},
}

var songCmd = &cobra.Command{
	Use:   "song [id] [note]",
	Short: "Send a song request for a catalogue id",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendRequest(cmd.Context(), djay.KindSong, args)
	},
}

var karaokeCmd = &cobra.Command{
	Use:   "karaoke [id] [note]",
	Short: "Send a karaoke request for a catalogue id",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendRequest(cmd.Context(), djay.KindKaraoke, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&customerName, "name", "n", "TestUser", "customer name to send as")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "override DELIVERY_ENDPOINT")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "override DELIVERY_TIMEOUT (per hop)")
	rootCmd.PersistentFlags().IntVar(&maxRedirects, "max-redirects", -1, "override DELIVERY_MAX_REDIRECTS (0 = unbounded)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "print the formatted text without sending")

	rootCmd.AddCommand(messageCmd, songCmd, karaokeCmd)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] .env not loaded, using system environment: %v", err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func sendRequest(ctx context.Context, kind djay.RequestKind, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var id int
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		return fmt.Errorf("invalid catalogue id %q", args[0])
	}

	var entries []model.Entry
	if kind == djay.KindKaraoke {
		entries = catalogue.LoadKaraoke(cfg.Catalogue.KaraokeCSV)
	} else {
		entries = catalogue.LoadSongs(cfg.Catalogue.SongsXML)
	}
	entry, ok := model.NewMemoryStore(entries, nil).FindByID(id)
	if !ok {
		return fmt.Errorf("no %s with id %d", kind, id)
	}

	note := ""
	if len(args) > 1 {
		note = args[1]
	}
	request := djay.Request{Kind: kind, CustomerName: customerName, Song: entry.Ref(), Note: note}
	return send(ctx, delivery.RequestText(request))
}

func send(ctx context.Context, text string) error {
	fmt.Printf("text: %s\n", text)
	if dryRun {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dcfg := delivery.Config{
		Endpoint:     cfg.Delivery.Endpoint,
		Timeout:      cfg.Delivery.Timeout,
		MaxRedirects: cfg.Delivery.MaxRedirects,
		UserAgent:    cfg.Delivery.UserAgent,
	}
	if endpoint != "" {
		dcfg.Endpoint = endpoint
	}
	if timeout > 0 {
		dcfg.Timeout = timeout
	}
	if maxRedirects >= 0 {
		dcfg.MaxRedirects = maxRedirects
	}

	gateway, err := delivery.NewGateway(dcfg, nil)
	if err != nil {
		return err
	}

	started := time.Now()
	body, err := gateway.Deliver(ctx, customerName, text)
	elapsed := time.Since(started).Round(time.Millisecond)
	if err != nil {
		fmt.Printf("failed after %s: %v\n", elapsed, err)
		return err
	}

	fmt.Printf("delivered to %s in %s, response %s\n", gateway.Endpoint(), elapsed, humanize.Bytes(uint64(len(body))))
	return nil
}

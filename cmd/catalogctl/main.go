// Command catalogctl manages the product catalog database.
//
// Usage:
//
//	go run ./cmd/catalogctl migrate
//	go run ./cmd/catalogctl seed products.json
//	go run ./cmd/catalogctl list
//	go run ./cmd/catalogctl lookup 5900000000001
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/teslashibe/go-shopassist/internal/config"
	ilog "github.com/teslashibe/go-shopassist/internal/log"
	"github.com/teslashibe/go-shopassist/pkg/cart"
	"github.com/teslashibe/go-shopassist/pkg/catalog"
)

func main() {
	configPath := flag.String("config", "", "Path to config.ini")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall deadline")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Config error: %v\n", err)
		os.Exit(1)
	}
	ilog.Init(settings.LogLevel)
	logger := ilog.Component("catalogctl")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, *timeout)
	defer cancel()

	db, err := catalog.NewPostgres(settings.DSN(), logger)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := run(ctx, db, flag.Args()); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: catalogctl [-config file] migrate | seed <file.json> | list | lookup <barcode>")
	flag.PrintDefaults()
}

func run(ctx context.Context, db *catalog.PostgresSource, args []string) error {
	switch args[0] {
	case "migrate":
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Println("✅ Tables ready")
		return nil

	case "seed":
		if len(args) < 2 {
			return fmt.Errorf("seed needs a file")
		}
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		entries, err := catalog.LoadSeed(f)
		if err != nil {
			return err
		}
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		n, err := catalog.Seed(ctx, db, entries)
		fmt.Printf("📦 Wrote %d/%d products\n", n, len(entries))
		return err

	case "list":
		snap, err := db.Fetch(ctx)
		if err != nil {
			return err
		}
		printSnapshot(snap)
		return nil

	case "lookup":
		if len(args) < 2 {
			return fmt.Errorf("lookup needs a barcode")
		}
		snap, err := db.Fetch(ctx)
		if err != nil {
			return err
		}
		p, ok := snap.Lookup(args[1])
		if !ok {
			fmt.Printf("❓ %s is not in the catalog\n", args[1])
			return nil
		}
		fmt.Printf("🏷️  %s → %s, %s\n", args[1], p.Name, cart.FormatTotal(p.Price))
		return nil
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func printSnapshot(snap *catalog.Snapshot) {
	codes := make(map[int64][]string)
	for code, id := range snap.Barcodes {
		codes[id] = append(codes[id], code)
	}
	ids := make([]int64, 0, len(snap.Products))
	for id := range snap.Products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		p := snap.Products[id]
		sort.Strings(codes[id])
		fmt.Printf("%4d  %-24s %10s  %v\n", p.ID, p.Name, p.PriceText(), codes[id])
	}
	products, barcodes := snap.Len()
	fmt.Printf("\n%d products, %d barcodes\n", products, barcodes)
}

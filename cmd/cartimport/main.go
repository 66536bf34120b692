package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ikkim/storefront-cart/config"
	"github.com/ikkim/storefront-cart/internal/sheet"
	"github.com/ikkim/storefront-cart/internal/storage"
	"github.com/ikkim/storefront-cart/pkg/logger"
)

func main() {
	owner := flag.String("owner", "", `cart owner, e.g. "user:42" or "session:<uuid>"`)
	merge := flag.Bool("merge", false, "add rows to the stored cart instead of replacing it")
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	flag.Parse()

	if flag.NArg() < 1 || *owner == "" {
		log.Fatal("Usage: go run cmd/cartimport/main.go -owner <owner> [-merge] [-yes] <xlsx_file_path>")
	}
	filePath := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.Initialize(logger.Config{Level: "warn", Format: "console", EnableColor: true})

	key := fmt.Sprintf("%s:%s", cfg.Cart.KeyPrefix, *owner)
	fmt.Printf("Importing %s into %s (backend: %s, merge: %t)\n", filePath, key, cfg.Cart.StorageBackend, *merge)

	if !*yes {
		fmt.Print("Do you want to proceed with the import? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm = strings.ToLower(strings.TrimSpace(confirm)); confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return
		}
	}

	backend, err := storage.Open(cfg)
	if err != nil {
		log.Fatal("Failed to open cart storage:", err)
	}
	defer backend.Close()

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatal("Failed to open XLSX:", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := sheet.Import(ctx, backend.Storage, key, f, *merge)
	if err != nil {
		log.Fatal("Failed to import cart:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Rows read: %d, cart lines stored: %d\n", res.Rows, len(res.Items))
}

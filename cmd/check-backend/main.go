package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/contentlab/seo-assistant/internal/backend"
	"github.com/contentlab/seo-assistant/internal/config"
	"github.com/contentlab/seo-assistant/internal/scheduler"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("SEO Assistant - Backend Connectivity Check")
	fmt.Println("==========================================")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("\nHealth endpoints")
	fmt.Println(strings.Repeat("-", 40))

	failed := false
	for _, st := range scheduler.NewService(cfg, nil).CheckServers(ctx) {
		if st.Healthy {
			fmt.Printf("  %-6s OK      %s (%dms)\n", st.Name, st.URL, st.LatencyMs)
			continue
		}
		failed = true
		fmt.Printf("  %-6s FAILED  %s: %s\n", st.Name, st.URL, st.Error)
	}

	fmt.Println("\nGraphQL")
	fmt.Println(strings.Repeat("-", 40))

	client := backend.NewClient(cfg.SEOURL, cfg.RequestTimeout)
	snapshot, err := client.GetAllDashboardData(ctx)
	if err != nil {
		failed = true
		fmt.Printf("  getAllDashboardData FAILED: %v\n", err)
	} else {
		fmt.Printf("  getAllDashboardData OK (%d keywords) at %s\n", len(snapshot.Data.Keywords), cfg.GraphQLURL())
	}

	if failed {
		fmt.Println("\nSome checks failed. Verify SEO_URL, API_URL and POST_URL in your .env file.")
		os.Exit(1)
	}
	fmt.Println("\nAll backend checks passed.")
}

// README: Parses a delivery manifest with Gemini and prints the extracted stops.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"routetrip/internal/ai"
)

const sampleManifest = `Route 14 - Tuesday
1. Chen Bakery, 12 Zhongshan Rd Sec 1, Taipei - 3 boxes, deliver before 10:00, do this one first
2. Pick up returns at Lin Hardware, 88 Minsheng E Rd - 1 bag
3. 45 Heping W Rd Sec 2, 5F - 2 parcels, ring twice
4. Daan Clinic, 101 Xinyi Rd Sec 4 - 1 box 13:00-15:00
Last: back to depot at 7 Nangang Rd`

func main() {
	file := flag.String("f", "", "manifest text file (default: built-in sample)")
	region := flag.String("region", "tw", "region hint for addresses")
	model := flag.String("model", "", "Gemini model (default "+ai.DefaultModel+")")
	flag.Parse()

	_ = godotenv.Load()
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable not set")
	}

	text := sampleManifest
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatalf("open manifest: %v", err)
		}
		b, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			log.Fatalf("read manifest: %v", err)
		}
		text = string(b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	provider, err := ai.NewGeminiProvider(ctx, apiKey, *model)
	if err != nil {
		log.Fatalf("Failed to initialize AI provider: %v", err)
	}
	defer provider.Close()

	entries, err := provider.ParseManifest(ctx, text, ai.ManifestHints{
		Region:      *region,
		CurrentTime: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		log.Fatalf("Error parsing manifest: %v", err)
	}

	fmt.Printf("%d stops\n", len(entries))
	for i, e := range entries {
		fmt.Printf("%2d. [%s/%s] %s | %s", i+1, e.StopType, e.OrderHint, e.Title, e.Address)
		if e.PackageCount > 0 {
			fmt.Printf(" | %d pkg", e.PackageCount)
		}
		if e.ArrivalFrom != "" || e.ArrivalTo != "" {
			fmt.Printf(" | %s-%s", e.ArrivalFrom, e.ArrivalTo)
		}
		if e.Notes != "" {
			fmt.Printf(" | %s", e.Notes)
		}
		fmt.Println()
	}
}

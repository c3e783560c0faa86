package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"
)

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "Number of recent fetches to show")
	failed := fs.Bool("failed", false, "Only show failed fetches")
	rawJSON := fs.Bool("json", false, "Output JSON lines")
	fs.Parse(os.Args[1:])
	id := requireArg(fs.Args(), "collection id")

	st := openDB(loadConfig())
	defer st.Close()

	records, err := st.RecentFetches(id, *limit)
	if err != nil {
		log.Fatalf("history: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	now := time.Now()
	for _, r := range records {
		if *failed && r.Err == "" {
			continue
		}
		if *rawJSON {
			enc.Encode(r)
			continue
		}

		kind := "full"
		if r.Partial {
			kind = "partial"
		}
		status := fmt.Sprintf("%d cards", r.CardCount)
		if r.Err != "" {
			status = "ERROR " + r.Err
		}
		fmt.Printf("%s  %-7s  %6s ago  %s  %s\n",
			r.FetchedAt.Local().Format("15:04:05"), kind,
			now.Sub(r.FetchedAt).Round(time.Second), truncate(r.Endpoint, 50), status)
	}
}

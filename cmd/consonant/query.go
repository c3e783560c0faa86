package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/abelbrown/consonant/internal/card"
	"github.com/abelbrown/consonant/internal/eventtiming"
	"github.com/abelbrown/consonant/internal/fetch"
	"github.com/abelbrown/consonant/internal/pipeline"
	"github.com/abelbrown/consonant/internal/urlstate"
)

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	id := fs.String("id", "", "Collection id when the page holds several")
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	fs.Parse(os.Args[1:])
	path := requireArg(fs.Args(), "collection")

	rawQuery := ""
	if fs.NArg() > 1 {
		rawQuery = strings.TrimPrefix(fs.Arg(1), "?")
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		log.Fatalf("invalid query string: %v", err)
	}

	ctx := context.Background()
	cfg := loadConfig()
	coll := loadCollection(path, *id)

	st, err := urlstate.Decode(q, coll.DefaultState())
	if err != nil {
		log.Fatalf("invalid state: %v", err)
	}
	clock := eventtiming.NewClock()
	if t, ok := urlstate.ServerTime(q); ok {
		clock.Override(t)
	}
	st.Now = clock.Now()

	db := openDB(cfg)
	defer db.Close()
	bookmarks, _ := db.Bookmarks(coll.Key())
	st.BookmarkedIDs = bookmarks

	req := coll.FetchRequest()
	req.PartialLoadCount = 0
	var feed card.Feed
	if err := newFetcher(ctx, cfg).Load(ctx, req, func(u fetch.Update) { feed = u.Feed }); err != nil {
		fmt.Fprintf(os.Stderr, "warning: load failed, showing no cards: %v\n", err)
	}

	res, err := pipeline.Run(card.UpdateBookmarkData(feed.Cards, bookmarks), coll.PipelineConfig(), st)
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatalf("encode: %v", err)
		}
		return
	}

	fmt.Printf("Collection:  %s\n", coll.Key())
	fmt.Printf("State:       %s\n", urlstate.Encode(st).Encode())
	fmt.Printf("Results:     %d (page %d/%d)\n", res.Total, res.Page, res.TotalPages)
	if res.NextTransition > 0 {
		fmt.Printf("Re-sort in:  %s\n", res.NextTransition)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tDATE\tFLAGS")
	for _, c := range res.Cards {
		var flags []string
		if c.IsFeatured {
			flags = append(flags, "featured")
		}
		if c.IsBookmarked {
			flags = append(flags, "bookmarked")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, truncate(stripHighlights(c.ContentArea.Title), 60), c.CardDate, strings.Join(flags, ","))
	}
	w.Flush()
}

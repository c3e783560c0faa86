package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

func runBookmarks() {
	fs := flag.NewFlagSet("bookmarks", flag.ExitOnError)
	add := fs.String("add", "", "Bookmark this card id")
	remove := fs.String("rm", "", "Remove the bookmark of this card id")
	toggle := fs.String("toggle", "", "Toggle the bookmark of this card id")
	fs.Parse(os.Args[1:])
	id := requireArg(fs.Args(), "collection id")

	st := openDB(loadConfig())
	defer st.Close()

	switch {
	case *add != "":
		if err := st.AddBookmark(id, *add); err != nil {
			log.Fatalf("add bookmark: %v", err)
		}
	case *remove != "":
		if err := st.RemoveBookmark(id, *remove); err != nil {
			log.Fatalf("remove bookmark: %v", err)
		}
	case *toggle != "":
		on, err := st.ToggleBookmark(id, *toggle)
		if err != nil {
			log.Fatalf("toggle bookmark: %v", err)
		}
		fmt.Printf("%s bookmarked: %v\n", *toggle, on)
	}

	ids, err := st.Bookmarks(id)
	if err != nil {
		log.Fatalf("list bookmarks: %v", err)
	}
	fmt.Printf("Bookmarks in %s (%d):\n", id, len(ids))
	for _, cardID := range ids {
		fmt.Printf("  %s\n", cardID)
	}
}

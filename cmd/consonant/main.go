// Command consonant browses, serves and inspects card collections.
//
// Usage:
//
//	consonant                          Show help
//	consonant browse <collection>      Terminal collection browser
//	consonant serve <collection>...    HTTP card service
//	consonant query <collection> [qs]  Print one pipeline result
//	consonant watch <page.html>        Re-mount collections when a page changes
//	consonant bookmarks <id>           List or edit bookmarks
//	consonant history <id>             Recent fetches of a collection
package main

import (
	"fmt"
	"os"
)

const usage = `consonant - card collection CLI

Usage:
  consonant <command> [flags]

Commands:
  browse      Terminal browser for one collection
  serve       HTTP service for one or more collections
  query       Run the pipeline once for a URL query string and print the cards
  watch       Watch a host page and re-mount its collections on change
  bookmarks   List, add or remove bookmarks of a collection
  history     Recent fetch attempts of a collection

A <collection> is a collection config file (JSON or YAML) or an HTML page
holding consonant-card-collection elements.

Environment:
  CONSONANT_ADDR                Listen address for serve (default :8080)
  CONSONANT_REDIS_ADDR          Cache feed responses in Redis
  CONSONANT_TELEMETRY_ENDPOINT  Enable the error beacon
  CONSONANT_DATA_DIR            Bookmark database directory (default ~/.consonant)

Run 'consonant <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "browse":
		runBrowse()
	case "serve":
		runServe()
	case "query":
		runQuery()
	case "watch":
		runWatch()
	case "bookmarks":
		runBookmarks()
	case "history":
		runHistory()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "consonant: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}

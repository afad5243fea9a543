package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pranavmodi/salesbot-sub002/internal/logs"
)

const dateLayout = "2006-01-02 15:04:05"

func main() {
	var (
		dir       = flag.String("dir", "logs", "log directory")
		prefix    = flag.String("prefix", "salesbot", "log file name prefix")
		list      = flag.Bool("list", false, "list log files and exit")
		tail      = flag.Int("tail", 0, "print the last N lines")
		grep      = flag.String("grep", "", "case-insensitive substring search")
		since     = flag.String("since", "", "only lines at or after this time (YYYY-MM-DD HH:MM:SS)")
		until     = flag.String("until", "", "only lines before this time (YYYY-MM-DD HH:MM:SS)")
		summary   = flag.Bool("summary", false, "print line counts per log level")
		deleteOld = flag.Int("delete-older-than", 0, "delete log files older than N days")
	)
	flag.Parse()

	m := logs.NewManager(*dir, *prefix)

	if *list {
		files, err := m.List()
		if err != nil {
			log.Fatalf("list: %v", err)
		}
		for _, f := range files {
			fmt.Printf("  %-32s %10d bytes  %s\n", f.Name, f.Size, f.ModTime.Format(dateLayout))
		}
		fmt.Printf("Total: %d files\n", len(files))
		return
	}

	if *deleteOld > 0 {
		cutoff := time.Now().AddDate(0, 0, -*deleteOld)
		removed, err := m.Delete(cutoff)
		if err != nil {
			log.Fatalf("delete: %v", err)
		}
		for _, name := range removed {
			fmt.Println("  removed", name)
		}
		fmt.Printf("Deleted %d files older than %s\n", len(removed), cutoff.Format("2006-01-02"))
		return
	}

	// Remaining modes operate on one file: the positional argument,
	// or the latest file when none is given.
	name := flag.Arg(0)
	if name == "" {
		latest, err := m.Latest()
		if err != nil {
			log.Fatalf("latest: %v", err)
		}
		if latest == nil {
			log.Fatal("no log files found")
		}
		name = latest.Name
	}

	switch {
	case *summary:
		s, err := m.Summarize(name)
		if err != nil {
			log.Fatalf("summarize: %v", err)
		}
		fmt.Printf("%s: %d lines\n", s.File, s.Lines)
		for _, level := range []string{"DEBUG", "INFO", "WARN", "ERROR"} {
			if n := s.Level[level]; n > 0 {
				fmt.Printf("  %-5s %d\n", level, n)
			}
		}

	case *grep != "" || *since != "" || *until != "":
		opts := logs.SearchOptions{Query: *grep}
		var err error
		if opts.Since, err = parseTime(*since); err != nil {
			log.Fatalf("invalid --since: %v", err)
		}
		if opts.Until, err = parseTime(*until); err != nil {
			log.Fatalf("invalid --until: %v", err)
		}
		lines, err := m.Search(name, opts)
		if err != nil {
			log.Fatalf("search: %v", err)
		}
		for _, l := range lines {
			fmt.Println(l)
		}
		fmt.Fprintf(os.Stderr, "%d matching lines in %s\n", len(lines), name)

	default:
		n := *tail
		if n == 0 {
			n = 50
		}
		lines, err := m.Tail(name, n)
		if err != nil {
			log.Fatalf("tail: %v", err)
		}
		for _, l := range lines {
			fmt.Println(l)
		}
	}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

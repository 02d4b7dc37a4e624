package commands

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// PageFlags selects a page of a list call.
type PageFlags struct {
	Page     int `help:"Page number" default:"1"`
	PageSize int `help:"Number of records per page" default:"20"`
}

func (p PageFlags) values() url.Values {
	q := url.Values{}
	if p.Page > 1 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(p.PageSize))
	}
	return q
}

func printPageFooter(count, shown int, p PageFlags, hasNext bool) {
	fmt.Printf("\nShowing %d of %d\n", shown, count)
	if hasNext {
		fmt.Printf("Use --page=%d to see next page\n", p.Page+1)
	}
}

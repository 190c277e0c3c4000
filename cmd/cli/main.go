package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hamed0406/uptimewatch/internal/domain"
	"github.com/hamed0406/uptimewatch/internal/scheduler"
)

// Prints every target with its status, latency and uptime over WINDOW
// (default 30d) using the ops API at API_BASE.
func main() {
	api := strings.TrimRight(os.Getenv("API_BASE"), "/")
	if api == "" {
		api = "http://localhost:8080"
	}
	window := os.Getenv("WINDOW")
	if window == "" {
		window = "30d"
	}
	c := &client{base: api, key: os.Getenv("API_KEY"), http: &http.Client{Timeout: 10 * time.Second}}

	var targets []domain.Target
	if err := c.get("/api/targets", &targets); err != nil {
		fmt.Fprintln(os.Stderr, "Error contacting API:", err)
		os.Exit(1)
	}
	if err := render(os.Stdout, c, targets, window); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type client struct {
	base string
	key  string
	http *http.Client
}

func (c *client) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func render(w io.Writer, c *client, targets []domain.Target, window string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tURL\tSTATUS\tLATENCY\tUPTIME(%s)\tLAST CHECKED\n", window)
	for _, t := range targets {
		uptime := "-"
		var st scheduler.UptimeStats
		if err := c.get("/api/targets/"+string(t.ID)+"/uptime?window="+window, &st); err == nil {
			uptime = fmt.Sprintf("%.2f%%", st.UptimePercent)
		}
		latency := "-"
		if t.LatencyMS != nil {
			latency = fmt.Sprintf("%dms", *t.LatencyMS)
		}
		checked := "never"
		if t.LastChecked != nil {
			checked = t.LastChecked.Format(time.RFC3339)
		}
		status := string(t.Status)
		if !t.IsActive {
			status += " (paused)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", t.Name, t.URL, status, latency, uptime, checked)
	}
	return tw.Flush()
}

package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Reusable dispatch client; Bark answers fast, the timeout covers APNs lag.
var barkClient = resty.New().SetTimeout(15 * time.Second)

// pushNotice is one rendered notification.
type pushNotice struct {
	Title string
	Body  string
	Icon  string
	Level string // active | timeSensitive | passive
}

// barkTransport is one way of delivering a push. Transports are tried in
// order; the first success wins and every failure keeps its own diagnostic.
type barkTransport struct {
	name string
	send func(base, key string, n pushNotice) error
}

var barkTransports = []barkTransport{
	{"json-post", postBarkJSON},
	{"get", getBark},
}

func postBarkJSON(base, key string, n pushNotice) error {
	payload := map[string]any{
		"title": n.Title,
		"body":  n.Body,
		"icon":  n.Icon,
	}
	if n.Level != "" {
		payload["level"] = n.Level
	}
	if g := getenv("BARK_GROUP", ""); g != "" {
		payload["group"] = g
	}
	resp, err := barkClient.R().
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(payload).
		Post(base + "/" + key)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("bark HTTP %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func getBark(base, key string, n pushNotice) error {
	req := barkClient.R().SetQueryParam("icon", n.Icon)
	if n.Level != "" {
		req.SetQueryParam("level", n.Level)
	}
	if g := getenv("BARK_GROUP", ""); g != "" {
		req.SetQueryParam("group", g)
	}
	resp, err := req.Get(base + "/" + key + "/" + url.PathEscape(n.Title) + "/" + url.PathEscape(n.Body))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("bark HTTP %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func inQuietHours() bool {
	// formats like "23-7" or "22-07"
	win := strings.TrimSpace(getenv("QUIET_HOURS", ""))
	if win == "" {
		return false
	}
	parts := strings.Split(win, "-")
	if len(parts) != 2 {
		return false
	}
	parseHour := func(s string) (int, bool) {
		s = strings.TrimSpace(s)
		if strings.Contains(s, ":") {
			s = strings.SplitN(s, ":", 2)[0]
		}
		h, err := strconv.Atoi(s)
		return h, err == nil && h >= 0 && h <= 23
	}
	startH, ok1 := parseHour(parts[0])
	endH, ok2 := parseHour(parts[1])
	if !ok1 || !ok2 {
		return false
	}
	nowH := time.Now().Hour()
	if startH == endH {
		return true // same hour means quiet all day
	}
	if startH < endH {
		return nowH >= startH && nowH < endH
	}
	// window crossing midnight
	return nowH >= startH || nowH < endH
}

// sendBark delivers one push through the first transport that accepts it.
// Dry-run mode prints instead of dispatching. Quiet hours downgrade the
// notification level rather than dropping the push.
func sendBark(title, body, icon string, severe bool) error {
	if getenv("BARK_DRYRUN", "") != "" {
		fmt.Printf("[dry-run bark] %s\n%s\n(icon %s)\n", title, body, icon)
		return nil
	}
	key := strings.TrimSpace(os.Getenv("BARK_KEY"))
	if key == "" {
		return errors.New("BARK_KEY is empty")
	}
	n := pushNotice{Title: title, Body: body, Icon: icon, Level: "active"}
	if severe {
		n.Level = "timeSensitive"
	}
	if inQuietHours() {
		n.Level = "passive"
	}
	base := strings.TrimRight(getenv("BARK_URL", "https://api.day.app"), "/")

	var errs []error
	for _, tr := range barkTransports {
		if err := tr.send(base, key, n); err != nil {
			notifyTotal.WithLabelValues(tr.name, "error").Inc()
			fmt.Fprintf(os.Stderr, "bark %s: %v\n", tr.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", tr.name, err))
			continue
		}
		notifyTotal.WithLabelValues(tr.name, "ok").Inc()
		return nil
	}
	return fmt.Errorf("all transports failed: %w", errors.Join(errs...))
}

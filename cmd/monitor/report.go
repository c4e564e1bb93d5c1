package main

import (
	"fmt"
	"strings"
)

// Push notification title for every dispatch of this monitor.
const notifyTitle = "常磐線運行情報"

// Icons maps run severity to a notification icon URL. Immutable, passed to
// the selector so tests can substitute their own.
type Icons struct {
	OK   string
	Warn string
	Err  string
}

var twemojiIcons = Icons{
	OK:   "https://raw.githubusercontent.com/twitter/twemoji/master/assets/72x72/2705.png",
	Warn: "https://raw.githubusercontent.com/twitter/twemoji/master/assets/72x72/26a0.png",
	Err:  "https://raw.githubusercontent.com/twitter/twemoji/master/assets/72x72/274c.png",
}

// choose maps the two run-level severity flags to one icon.
func (ic Icons) choose(hasAbnormal, hasSevere bool) string {
	if !hasAbnormal {
		return ic.OK
	}
	if hasSevere {
		return ic.Err
	}
	return ic.Warn
}

// groupKey merges lines whose current status reads identically.
type groupKey struct {
	status   string
	reason   string
	delayMin int
}

// buildGroupedMessage renders all records into one notification body, one
// block per distinct (status, reason, delay) key in first-seen order, and
// derives the two run-level severity flags.
//
// Fetch-error records deliberately stay out of hasAbnormal: a scraping
// outage must not read as a service disruption.
func (v Vocab) buildGroupedMessage(results []LineStatus) (hasAbnormal, hasSevere bool, body string) {
	groups := map[groupKey][]LineStatus{}
	var order []groupKey
	for _, r := range results {
		k := groupKey{status: r.Status, reason: r.Reason, delayMin: r.DelayMin}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)

		if !strings.Contains(r.Status, v.Normal) && !strings.Contains(r.Status, v.FetchError) {
			hasAbnormal = true
		}
		for _, w := range v.SevereWords {
			if strings.Contains(r.Status, w) {
				hasSevere = true
				break
			}
		}
	}

	blocks := make([]string, 0, len(order))
	for _, k := range order {
		items := groups[k]
		names := make([]string, len(items))
		for i, it := range items {
			names[i] = it.Name
		}
		// update time comes from the first member; merged lines share it
		lines := []string{
			"【" + strings.Join(names, " / ") + "】",
			"状態：" + k.status,
			"更新：" + items[0].Updated,
		}
		if k.reason != "" && !strings.Contains(k.status, v.FetchError) {
			lines = append(lines, "原因："+k.reason)
			if k.delayMin > 0 {
				lines = append(lines, fmt.Sprintf("遅れ：約%d分", k.delayMin))
			}
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return hasAbnormal, hasSevere, strings.Join(blocks, "\n\n")
}

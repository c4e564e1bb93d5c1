package main

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Line is one monitored segment. Name doubles as the literal heading text
// expected on its status page.
type Line struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// LineStatus is the per-line result of one poll.
type LineStatus struct {
	Name     string
	Updated  string
	Status   string
	Reason   string
	DelayMin int
}

// Vocab fixes the word lists and sentinel labels the extractor and the
// aggregator match against. A value is treated as immutable once built, so
// tests can substitute their own.
type Vocab struct {
	StatusWords []string // ordered; first exact token hit inside the window wins
	StopWords   []string // reason scan stops before any token containing one
	SevereWords []string // containment in a status marks the run severe
	Normal      string   // normal-operation label
	FetchError  string   // status label for failed retrievals
	FetchFailed string   // updated field for failed retrievals
	NoIncident  string   // boilerplate phrase that must never become a reason
	UpdatedMark string   // suffix every resolved updated field ends in
	UnknownTime string
	UnknownStat string
}

var jobanVocab = Vocab{
	StatusWords: []string{"平常運転", "遅延", "運転見合わせ", "運休", "ダイヤ乱れ", "運転状況", "列車遅延", "その他"},
	StopWords:   []string{"迂回ルート検索", "路線を登録", "路線を登録すると", "に関するつぶやき", "ツイート"},
	SevereWords: []string{"運転見合わせ", "運休", "脱線"},
	Normal:      "平常運転",
	FetchError:  "情報取得エラー",
	FetchFailed: "取得失敗",
	NoIncident:  "事故・遅延に関する情報はありません",
	UpdatedMark: "更新",
	UnknownTime: "更新時刻不明",
	UnknownStat: "状態不明",
}

// scan windows after the heading / status token, exclusive upper bounds
const (
	statusWindow = 15
	reasonWindow = 10
)

var (
	dateTimeRe = regexp.MustCompile(`^\d{1,2}月\d{1,2}日[\s\p{Zs}]+\d{1,2}時\d{1,2}分$`)
	delayMinRe = regexp.MustCompile(`(\d{1,3})分(?:ほど|程度|くらい)?の?遅れ`)
)

// titleIndex picks the token that is the real section heading for name.
// Pages repeat the line name (breadcrumb, phonetic heading); only the
// occurrence immediately followed by a date token is the content heading.
// Falls back to the first occurrence when no candidate has one.
func titleIndex(name string, tokens []string) (int, bool) {
	name = foldWidth(name)
	first := -1
	for i, t := range tokens {
		// both sides folded: the configured name may carry width variants
		// (fullwidth tilde in the segment ranges) that the stream no longer has
		if foldWidth(t) != name {
			continue
		}
		if first < 0 {
			first = i
		}
		if i+1 < len(tokens) && dateTimeRe.MatchString(tokens[i+1]) {
			return i, true
		}
	}
	if first >= 0 {
		return first, true
	}
	return 0, false
}

// extract derives the updated/status/reason fields for one line from its
// token stream. It never fails: anything unrecognized degrades to the
// vocabulary's sentinel values.
func (v Vocab) extract(name string, tokens []string) LineStatus {
	res := LineStatus{Name: name, Updated: v.UnknownTime, Status: v.UnknownStat}

	ti, hasTitle := titleIndex(name, tokens)

	// Updated time: the token right after the heading, normalized to end in
	// the updated marker. The heading fallback can point at a non-date
	// occurrence; its neighbor is still taken as-is.
	if hasTitle && ti+1 < len(tokens) {
		res.Updated = tokens[ti+1]
		if ti+2 < len(tokens) && strings.Contains(tokens[ti+2], v.UpdatedMark) {
			res.Updated += tokens[ti+2]
		} else if !strings.Contains(res.Updated, v.UpdatedMark) {
			res.Updated += v.UpdatedMark
		}
	}
	if res.Updated == v.UnknownTime {
		for _, t := range tokens {
			if dateTimeRe.MatchString(t) {
				res.Updated = t + v.UpdatedMark
				break
			}
		}
	}

	// Status: first exact vocabulary member in a bounded window after the
	// heading, or anywhere in the stream when no heading was found.
	lo, hi := 0, len(tokens)
	if hasTitle {
		lo = ti + 1
		hi = min(ti+statusWindow, len(tokens))
	}
	statusIdx := -1
	for j := lo; j < hi; j++ {
		if slices.Contains(v.StatusWords, tokens[j]) {
			res.Status = tokens[j]
			statusIdx = j
			break
		}
	}

	// Reason: only for non-normal states. Collect the tokens following the
	// status until boilerplate starts, then reject the no-incident phrase,
	// which shows up in the same position as a real incident description.
	if statusIdx >= 0 && !strings.Contains(res.Status, v.Normal) {
		var detail []string
		for j := statusIdx + 1; j < min(statusIdx+reasonWindow, len(tokens)); j++ {
			if v.isStopToken(tokens[j]) {
				break
			}
			detail = append(detail, tokens[j])
		}
		if len(detail) > 0 {
			reason := strings.Join(detail, " ")
			if !strings.Contains(reason, v.NoIncident) {
				res.Reason = reason
				if m := delayMinRe.FindStringSubmatch(reason); m != nil {
					res.DelayMin, _ = strconv.Atoi(m[1])
				}
			}
		}
	}
	return res
}

func (v Vocab) isStopToken(t string) bool {
	for _, sw := range v.StopWords {
		if strings.Contains(t, sw) {
			return true
		}
	}
	return false
}

// tokenFetcher turns a page URL into its token stream.
type tokenFetcher func(url string) ([]string, error)

// collectLines builds one status record per configured line, in order. A
// failing line becomes an error record; it never interrupts the others.
func collectLines(lines []Line, fetch tokenFetcher, v Vocab) []LineStatus {
	results := make([]LineStatus, 0, len(lines))
	for _, ln := range lines {
		tokens, err := fetch(ln.URL)
		if err != nil {
			fetchErrors.WithLabelValues(ln.Name).Inc()
			fmt.Fprintf(os.Stderr, "%s: %v\n", ln.Name, err)
			results = append(results, LineStatus{
				Name:    ln.Name,
				Updated: v.FetchFailed,
				Status:  v.FetchError,
				Reason:  err.Error(),
			})
			continue
		}
		res := v.extract(ln.Name, tokens)
		debugf("%s: updated=%q status=%q reason=%q delay=%d (%d tokens)",
			ln.Name, res.Updated, res.Status, res.Reason, res.DelayMin, len(tokens))
		results = append(results, res)
	}
	return results
}

package catalog

import (
	"sort"
	"strings"
)

const (
	tagWeight     = 2
	captionWeight = 1
	urlWeight     = 1
)

// Score computes how relevant record is to keywords. Each keyword adds
// tagWeight when it equals one of the tags, captionWeight when it occurs in
// the caption and urlWeight when it occurs in the URL. Comparisons ignore case.
func Score(record ImageRecord, keywords []string) int {
	tags := make(map[string]struct{}, len(record.Tags))
	for _, t := range record.Tags {
		tags[strings.ToLower(t)] = struct{}{}
	}
	caption := strings.ToLower(record.Caption)
	url := strings.ToLower(record.URL)

	score := 0
	for _, kw := range keywords {
		k := strings.ToLower(kw)
		if _, ok := tags[k]; ok {
			score += tagWeight
		}
		if strings.Contains(caption, k) {
			score += captionWeight
		}
		if strings.Contains(url, k) {
			score += urlWeight
		}
	}
	return score
}

// Rank scores every record and orders them by descending score. Records with
// equal scores keep their catalog order.
func Rank(records []ImageRecord, keywords []string) []ScoredCandidate {
	scored := make([]ScoredCandidate, len(records))
	for i, r := range records {
		scored[i] = ScoredCandidate{Record: r, Score: Score(r, keywords)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// BestMatch picks the record to show for keywords. With no keywords the first
// record is the default. Otherwise the top ranked record is returned only when
// its score is positive, so callers can fall back instead of showing an
// unrelated image.
func BestMatch(records []ImageRecord, keywords []string) (ImageRecord, bool) {
	if len(records) == 0 {
		return ImageRecord{}, false
	}
	if len(keywords) == 0 {
		return records[0], true
	}
	ranked := Rank(records, keywords)
	if ranked[0].Score <= 0 {
		return ImageRecord{}, false
	}
	return ranked[0].Record, true
}

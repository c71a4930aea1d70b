package source

import (
	"sort"
	"strings"
)

var platformAliases = map[string]string{
	"twitter": "x",
	"x.com":   "x",
	"fb":      "facebook",
	"ig":      "instagram",
	"yt":      "youtube",
}

// NormalizePlatform maps a platform name to its trend_domains key.
func NormalizePlatform(platform string) string {
	p := strings.ToLower(strings.TrimSpace(platform))
	if alias, ok := platformAliases[p]; ok {
		return alias
	}
	return p
}

// DomainsFor collects the configured trend domains for platforms, without
// duplicates and in first-seen order.
func DomainsFor(config map[string][]string, platforms []string) []string {
	if len(config) == 0 {
		return nil
	}
	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	normalized := make(map[string][]string, len(config))
	for _, k := range keys {
		key := NormalizePlatform(k)
		normalized[key] = append(normalized[key], config[k]...)
	}

	seen := make(map[string]bool)
	var out []string
	for _, p := range platforms {
		for _, d := range normalized[NormalizePlatform(p)] {
			d = strings.ToLower(strings.TrimSpace(d))
			if d == "" || seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

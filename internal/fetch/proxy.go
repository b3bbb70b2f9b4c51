package fetch

import (
	"hash/fnv"
	"net/url"
	"strings"
)

// SelectProxy returns one URL from pool (comma-separated) chosen by hashing
// key, so the same domain always egresses through the same proxy. An empty
// pool yields "".
func SelectProxy(pool, key string) string {
	var valid []string
	for _, p := range strings.Split(pool, ",") {
		if p = strings.TrimSpace(p); p != "" {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return valid[h.Sum32()%uint32(len(valid))]
}

// proxyKey reduces a domain or URL to its host so every page of a domain
// hashes alike.
func proxyKey(domain string) string {
	u, err := url.Parse(domain)
	if err != nil || u.Host == "" {
		return domain
	}
	return u.Host
}

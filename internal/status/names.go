package status

import (
	"embed"
	"io/fs"
	"strings"
	"sync"
)

//go:embed names/*.txt
var namesFS embed.FS

// Pool is a tag selecting which fixed name list viewers are drawn from.
type Pool string

const (
	PoolFrench        Pool = "french"
	PoolCreole        Pool = "creole"
	PoolInternational Pool = "international"
	PoolMixed         Pool = "mixed"
)

// Pools returns the four valid pool tags in display order.
func Pools() []Pool {
	return []Pool{PoolFrench, PoolCreole, PoolInternational, PoolMixed}
}

// ValidPool reports whether tag is one of the four pool tags.
func ValidPool(tag string) bool {
	for _, p := range Pools() {
		if string(p) == tag {
			return true
		}
	}
	return false
}

// Label is the French display label used by the pool selector.
func (p Pool) Label() string {
	switch p {
	case PoolCreole:
		return "Créole Haïtien"
	case PoolInternational:
		return "International"
	case PoolMixed:
		return "Mixte"
	default:
		return "Français"
	}
}

var (
	poolsOnce sync.Once
	basePools map[Pool][]string
)

func loadPools() {
	basePools = make(map[Pool][]string, 3)
	for _, p := range []Pool{PoolFrench, PoolCreole, PoolInternational} {
		names, err := loadNames(string(p))
		if err != nil {
			// Embedded at build time; a missing file is a packaging bug.
			panic(err)
		}
		basePools[p] = names
	}
}

// loadNames reads one embedded list, trimming blanks and dropping repeats so that
// every entry of a pool is a distinct display name.
func loadNames(name string) ([]string, error) {
	b, err := fs.ReadFile(namesFS, "names/"+name+".txt")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		n := strings.TrimSpace(line)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// Names returns a fresh copy of the pool for tag. "mixed" is the french, creole and
// international pools concatenated in that order; unknown tags get the french pool.
func Names(tag string) []string {
	poolsOnce.Do(loadPools)
	switch Pool(tag) {
	case PoolCreole, PoolInternational:
		return append([]string(nil), basePools[Pool(tag)]...)
	case PoolMixed:
		out := make([]string, 0, len(basePools[PoolFrench])+len(basePools[PoolCreole])+len(basePools[PoolInternational]))
		out = append(out, basePools[PoolFrench]...)
		out = append(out, basePools[PoolCreole]...)
		out = append(out, basePools[PoolInternational]...)
		return out
	default:
		return append([]string(nil), basePools[PoolFrench]...)
	}
}

package status

import (
	"math/rand"
	"sync"
	"time"
)

// Viewer is one synthetic entry of the "seen by" list. It has no identity beyond its
// position in the list.
type Viewer struct {
	Name       string `json:"name" yaml:"name"`
	HasReacted bool   `json:"hasReacted" yaml:"hasReacted"`
	Reaction   string `json:"reaction" yaml:"reaction"`
	TimeAgo    string `json:"timeAgo" yaml:"timeAgo"`
	IsOnline   bool   `json:"isOnline" yaml:"isOnline"`
	Avatar     string `json:"avatar" yaml:"avatar"`
}

const (
	reactProbability  = 0.6
	onlineProbability = 0.7
)

// Reactions is the emoji set a reacting viewer picks from.
var Reactions = []string{"❤️", "👍", "😂", "😮", "😢", "😡", "👏", "🔥", "💯"}

// TimeLabels are the relative-time labels shown next to a viewer.
var TimeLabels = []string{"il y a 2 min", "il y a 5 min", "il y a 12 min", "il y a 18 min", "il y a 25 min", "il y a 1h"}

// Avatars are the portrait URLs handed out to generated viewers.
var Avatars = []string{
	"https://images.unsplash.com/photo-1494790108755-2616b612b77c?w=150&h=150&fit=crop&crop=face",
	"https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=150&h=150&fit=crop&crop=face",
	"https://images.unsplash.com/photo-1438761681033-6461ffad8d80?w=150&h=150&fit=crop&crop=face",
	"https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=150&h=150&fit=crop&crop=face",
	"https://images.unsplash.com/photo-1544005313-94ddf0286df2?w=150&h=150&fit=crop&crop=face",
	"https://images.unsplash.com/photo-1506794778202-cad84cf45f1d?w=150&h=150&fit=crop&crop=face",
	"https://images.unsplash.com/photo-1557862921-37829c790f19?w=150&h=150&fit=crop&crop=face",
	"https://images.unsplash.com/photo-1547425260-76bcadfb4f2c?w=150&h=150&fit=crop&crop=face",
}

// Generator draws distinct viewer names and synthesizes their metadata.
// It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a generator seeded with seed. Equal seeds yield equal output.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// NewRandomGenerator returns a generator seeded from the clock.
func NewRandomGenerator() *Generator {
	return NewGenerator(time.Now().UnixNano())
}

// Generate returns min(count, pool size) viewers with distinct names from the pool
// for tag. Callers are expected to have validated count and tag.
func (g *Generator) Generate(count int, tag string) []Viewer {
	pool := Names(tag)
	g.mu.Lock()
	defer g.mu.Unlock()

	selected := make([]Viewer, 0, min(max(count, 0), len(pool)))
	used := make(map[string]struct{}, len(pool))
	for len(selected) < count && len(used) < len(pool) {
		name := pool[g.rng.Intn(len(pool))]
		if _, ok := used[name]; ok {
			continue
		}
		used[name] = struct{}{}
		selected = append(selected, g.viewerLocked(name))
	}
	return selected
}

func (g *Generator) viewerLocked(name string) Viewer {
	hasReacted := g.rng.Float64() < reactProbability
	reaction := ""
	if hasReacted {
		reaction = Reactions[g.rng.Intn(len(Reactions))]
	}
	return Viewer{
		Name:       name,
		HasReacted: hasReacted,
		Reaction:   reaction,
		TimeAgo:    TimeLabels[g.rng.Intn(len(TimeLabels))],
		IsOnline:   g.rng.Float64() < onlineProbability,
		Avatar:     Avatars[g.rng.Intn(len(Avatars))],
	}
}

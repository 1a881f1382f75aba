package feeds

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

const (
	AlgoFollowing     = "following"
	AlgoWhatsHot      = "whats-hot"
	AlgoHotClassic    = "hot-classic"
	AlgoWithFriends   = "with-friends"
	AlgoMutuals       = "mutuals"
	AlgoBskyTeam      = "bsky-team"
	AlgoBestOfFollows = "best-of-follows"
)

// Options tune the built-in strategies.
type Options struct {
	// TimelineWindow bounds each timeline sub-stream to items newer than the
	// cursor (or now) minus the window. Zero disables windowing.
	TimelineWindow time.Duration

	HotThreshold int64
	HotWindow    time.Duration

	// DenyLabels are label values that keep an item out of label-filtered
	// feeds.
	DenyLabels []string

	TeamDIDs []string

	// Lists are additional fixed author lists served under their key.
	Lists map[string][]string

	Now func() time.Time
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// DefaultRegistry wires every built-in algorithm against db.
func DefaultRegistry(db *gorm.DB, opts Options) *Registry {
	r := NewRegistry()
	r.Register(AlgoFollowing, NewTimeline(db, opts))
	r.Register(AlgoWhatsHot, NewWhatsHot(db, opts))
	r.Register(AlgoHotClassic, NewHotClassic(db, opts))
	r.Register(AlgoWithFriends, NewWithFriends(db))
	r.Register(AlgoMutuals, NewMutuals(db))
	r.Register(AlgoBskyTeam, NewListFeed(db, AlgoBskyTeam, opts.TeamDIDs))
	r.Register(AlgoBestOfFollows, NewBestOfFollows(db))
	for name, dids := range opts.Lists {
		r.Register(name, NewListFeed(db, name, dids))
	}
	return r
}

func (r *Registry) Register(algo string, s Strategy) {
	r.strategies[algo] = s
}

func (r *Registry) Get(algo string) (Strategy, error) {
	s, ok := r.strategies[algo]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algo)
	}
	return s, nil
}

// Algorithms lists the registered algorithm ids in lexical order.
func (r *Registry) Algorithms() []string {
	out := make([]string, 0, len(r.strategies))
	for k := range r.strategies {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

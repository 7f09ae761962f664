package volume

import (
	"sort"
	"sync"

	"radarpipe/internal/config"
	"radarpipe/internal/scanfile"
)

// Member is one acquired file inside a volume group.
type Member struct {
	Name      scanfile.Name
	LocalPath string
}

// Group is the set of files belonging to one logical acquisition instant.
// The group itself does not judge completeness; that is the policy's job.
type Group struct {
	Key     scanfile.VolumeKey
	Members []Member
	// CyclesSinceGrowth counts processing poll cycles since the last new
	// member arrived. Drives the quiescence completeness policy.
	CyclesSinceGrowth int
}

// Fields returns the set of field names present in the group.
func (g *Group) Fields() map[string]struct{} {
	fields := make(map[string]struct{}, len(g.Members))
	for _, m := range g.Members {
		fields[m.Name.Field] = struct{}{}
	}
	return fields
}

// Completeness decides whether a group is ready to dispatch. Deployments
// choose the policy; the daemon never hard-codes one.
type Completeness func(g *Group) bool

// FieldSetComplete dispatches a group once every field the volume-type table
// expects for its scan id is present. Groups for scans absent from the table
// never dispatch under this policy.
func FieldSetComplete(types config.VolumeTypes) Completeness {
	return func(g *Group) bool {
		expected, ok := types[g.Key.Scan]
		if !ok {
			return false
		}
		present := g.Fields()
		for _, field := range expected {
			if _, ok := present[field]; !ok {
				return false
			}
		}
		return true
	}
}

// QuiescentComplete dispatches a group after it has gone the given number of
// poll cycles without a new member.
func QuiescentComplete(cycles int) Completeness {
	if cycles < 1 {
		cycles = 1
	}
	return func(g *Group) bool {
		return len(g.Members) > 0 && g.CyclesSinceGrowth >= cycles
	}
}

// Grouper buckets acquired files by volume key. Safe for concurrent Add from
// the download daemon's callback while the processing loop snapshots.
type Grouper struct {
	mu     sync.Mutex
	groups map[string]*Group
}

// NewGrouper returns an empty grouper.
func NewGrouper() *Grouper {
	return &Grouper{groups: make(map[string]*Group)}
}

// Add inserts a member into its group, creating the group on first sight.
// Duplicate filenames are ignored.
func (gr *Grouper) Add(m Member) {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	key := m.Name.Key()
	id := key.String()
	g, ok := gr.groups[id]
	if !ok {
		g = &Group{Key: key}
		gr.groups[id] = g
	}
	for _, existing := range g.Members {
		if existing.Name.Filename == m.Name.Filename {
			return
		}
	}
	g.Members = append(g.Members, m)
	g.CyclesSinceGrowth = -1 // grew this cycle; Tick restores to zero
}

// Tick advances the quiescence counters and returns a stable snapshot of all
// groups, ordered by key.
func (gr *Grouper) Tick() []*Group {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	snapshot := make([]*Group, 0, len(gr.groups))
	for _, g := range gr.groups {
		g.CyclesSinceGrowth++
		copied := &Group{
			Key:               g.Key,
			Members:           append([]Member(nil), g.Members...),
			CyclesSinceGrowth: g.CyclesSinceGrowth,
		}
		snapshot = append(snapshot, copied)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Key.String() < snapshot[j].Key.String()
	})
	return snapshot
}

// Remove drops a dispatched group.
func (gr *Grouper) Remove(key scanfile.VolumeKey) {
	gr.mu.Lock()
	defer gr.mu.Unlock()
	delete(gr.groups, key.String())
}

// Len returns the number of pending groups.
func (gr *Grouper) Len() int {
	gr.mu.Lock()
	defer gr.mu.Unlock()
	return len(gr.groups)
}

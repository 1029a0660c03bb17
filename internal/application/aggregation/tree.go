// Package aggregation rolls the latest bed counts of active ICUs up the
// geographic hierarchy and cuts the result into map clusters.
package aggregation

import (
	"strings"
	"time"

	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/domain/icu"
)

// Level is one rung of the hierarchy.
type Level string

const (
	LevelCountry Level = "country"
	LevelRegion  Level = "region"
	LevelDept    Level = "dept"
	LevelCity    Level = "city"
	LevelICU     Level = "icu"
)

// Levels is ordered from the root down.
var Levels = []Level{LevelCountry, LevelRegion, LevelDept, LevelCity, LevelICU}

// ParseLevel accepts the lower-case level names.
func ParseLevel(s string) (Level, bool) {
	for _, l := range Levels {
		if string(l) == strings.ToLower(strings.TrimSpace(s)) {
			return l, true
		}
	}
	return "", false
}

func (l Level) next() (Level, bool) {
	for i, cur := range Levels {
		if cur == l && i < len(Levels)-1 {
			return Levels[i+1], true
		}
	}
	return "", false
}

// Color buckets an occupation ratio.
type Color string

const (
	ColorGreen  Color = "green"
	ColorOrange Color = "orange"
	ColorRed    Color = "red"
)

func colorOf(ratio float64) Color {
	switch {
	case ratio < 0.5:
		return ColorGreen
	case ratio < 0.8:
		return ColorOrange
	default:
		return ColorRed
	}
}

// Node is one vertex of the tree. Non-leaf counters are sums over children;
// coordinates are the mean of children with non-zero coordinates.
type Node struct {
	ID         string
	Label      string
	Level      Level
	ICUID      int64
	Phone      string
	Occupied   int
	Free       int
	Total      int
	Ratio      float64
	Color      Color
	Deaths     int
	Healed     int
	LastUpdate time.Time
	Lat        float64
	Lng        float64

	children map[string]*Node
	order    []string
	located  int
}

func newNode(level Level) *Node {
	return &Node{Level: level, Color: colorOf(0), children: map[string]*Node{}}
}

// Tree is built once and read many times; it is not safe for concurrent
// writes.
type Tree struct {
	root  *Node
	covid bool
}

// NewTree returns an empty tree reading covid or non-covid bed counters.
func NewTree(covid bool) *Tree {
	return &Tree{root: newNode(LevelCountry), covid: covid}
}

func (t *Tree) Root() *Node { return t.root }

// Add inserts one ICU with its latest reading. Inactive ICUs and ICUs
// without a reading are skipped; the return value reports insertion.
func (t *Tree) Add(i *icu.ICU, b *bedcount.BedCount) bool {
	if i == nil || !i.IsActive || b == nil {
		return false
	}
	t.root.add(i, b, t.covid)
	return true
}

func (n *Node) IsLeaf() bool { return n.Level == LevelICU }

// Children returns the children in insertion order.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.order))
	for _, k := range n.order {
		out = append(out, n.children[k])
	}
	return out
}

func (n *Node) add(i *icu.ICU, b *bedcount.BedCount, covid bool) {
	n.setBasicInformation(i)
	n.accountFor(b, covid)
	n.propagate(i, b, covid)
}

func (n *Node) setBasicInformation(i *icu.ICU) {
	if n.Label == "" {
		n.Label = levelName(i, n.Level)
		n.ID = "id_" + strings.ReplaceAll(n.Label, " ", "_")
	}
	if n.IsLeaf() {
		n.ICUID = i.ID
		if n.Phone == "" {
			n.Phone = strings.TrimLeft(i.Phone, "+")
		}
		n.Lat, n.Lng = i.Lat, i.Lng
	}
}

func (n *Node) accountFor(b *bedcount.BedCount, covid bool) {
	n.Occupied += b.Occupied(covid)
	n.Free += b.Free(covid)
	n.Total = n.Occupied + n.Free
	n.Ratio = 0
	if n.Total > 0 {
		n.Ratio = float64(n.Occupied) / float64(n.Total)
	}
	n.Color = colorOf(n.Ratio)
	n.Deaths += b.NCovidDeaths
	n.Healed += b.NCovidHealed
	if b.CreatedAt.After(n.LastUpdate) {
		n.LastUpdate = b.CreatedAt
	}
}

func (n *Node) propagate(i *icu.ICU, b *bedcount.BedCount, covid bool) {
	next, ok := n.Level.next()
	if !ok {
		return
	}
	key := levelName(i, next)
	child, exists := n.children[key]
	if !exists {
		child = newNode(next)
	}
	child.add(i, b, covid)
	if exists {
		return
	}

	n.children[key] = child
	n.order = append(n.order, key)
	if child.Lat == 0 && child.Lng == 0 {
		return
	}
	n.located++
	k := float64(n.located)
	n.Lat = (child.Lat + (k-1)*n.Lat) / k
	n.Lng = (child.Lng + (k-1)*n.Lng) / k
}

// levelName is the key of i at level; blank values fall back to the ICU name.
func levelName(i *icu.ICU, level Level) string {
	var name string
	switch level {
	case LevelCountry:
		name = i.Country
	case LevelRegion:
		name = i.RegionName
	case LevelDept:
		name = i.Dept
	case LevelCity:
		name = i.City
	}
	if strings.TrimSpace(name) == "" {
		return i.Name
	}
	return name
}

// Leaves returns every ICU node below n, in insertion order.
func (n *Node) Leaves() []*Node {
	var out []*Node
	n.collectLeaves(&out)
	return out
}

func (n *Node) collectLeaves(out *[]*Node) {
	if n.IsLeaf() {
		*out = append(*out, n)
		return
	}
	for _, k := range n.order {
		n.children[k].collectLeaves(out)
	}
}

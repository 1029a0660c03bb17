package aggregation

import "sort"

// Cluster is one visible map entity with the ICUs it stands for.
type Cluster struct {
	Node   *Node
	Leaves []*Node
}

// Extract cuts the tree at level. A cluster holding more than maxNodes
// leaves is replaced by the clusters of its children; maxNodes <= 0 means no
// budget. Leaves with no beds are dropped unless keepEmpty, and so are the
// clusters left without leaves. The result is ordered north first.
func (t *Tree) Extract(level Level, keepEmpty bool, maxNodes int) []Cluster {
	var out []Cluster
	t.root.extract(level, keepEmpty, maxNodes, false, &out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Node.Lat > out[j].Node.Lat })
	return out
}

func (n *Node) extract(level Level, keepEmpty bool, maxNodes int, reached bool, out *[]Cluster) {
	if !reached && n.Level != level {
		for _, child := range n.Children() {
			child.extract(level, keepEmpty, maxNodes, false, out)
		}
		return
	}

	leaves := filterLeaves(n.Leaves(), keepEmpty)
	if len(leaves) == 0 {
		return
	}
	if maxNodes > 0 && len(leaves) > maxNodes && !n.IsLeaf() {
		for _, child := range n.Children() {
			child.extract(level, keepEmpty, maxNodes, true, out)
		}
		return
	}
	*out = append(*out, Cluster{Node: n, Leaves: leaves})
}

func filterLeaves(leaves []*Node, keepEmpty bool) []*Node {
	if keepEmpty {
		return leaves
	}
	kept := leaves[:0:0]
	for _, l := range leaves {
		if l.Total > 0 {
			kept = append(kept, l)
		}
	}
	return kept
}

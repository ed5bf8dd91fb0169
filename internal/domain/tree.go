package domain

// BuildTree links flat nodes into a forest using their parent ids.
// Nodes whose parent is missing become roots; nodes caught in a cycle are
// promoted to roots with the cycle cut, so every input node appears once.
// BuildTree relie des nœuds à plat en forêt à partir des ids parents.
func BuildTree[N any](items []N, id func(N) int64, parent func(N) *int64, attach func(parent, child N)) []N {
	byID := make(map[int64]N, len(items))
	for _, it := range items {
		byID[id(it)] = it
	}

	children := make(map[int64][]N)
	var roots []N
	for _, it := range items {
		p := parent(it)
		if p == nil || *p == id(it) {
			roots = append(roots, it)
			continue
		}
		if _, ok := byID[*p]; !ok {
			roots = append(roots, it)
			continue
		}
		children[*p] = append(children[*p], it)
	}

	visited := make(map[int64]bool, len(items))
	var walk func(n N)
	walk = func(n N) {
		visited[id(n)] = true
		for _, c := range children[id(n)] {
			if visited[id(c)] {
				continue
			}
			attach(n, c)
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}

	for _, it := range items {
		if !visited[id(it)] {
			roots = append(roots, it)
			walk(it)
		}
	}
	return roots
}

// IsDescendant reports whether nodeID sits below ancestorID (or is it)
// IsDescendant indique si nodeID se trouve sous ancestorID (ou l'est)
func IsDescendant(parents map[int64]*int64, ancestorID, nodeID int64) bool {
	seen := make(map[int64]bool)
	current := nodeID
	for {
		if current == ancestorID {
			return true
		}
		if seen[current] {
			return false
		}
		seen[current] = true

		p, ok := parents[current]
		if !ok || p == nil {
			return false
		}
		current = *p
	}
}

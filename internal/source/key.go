package source

// Key is the identity of a source: a title is unique within its file.
type Key struct {
	DatabasePath string
	Title        string
}

// Key returns the identity of d.
func (d Descriptor) Key() Key {
	return Key{DatabasePath: d.DatabasePath, Title: d.Title}
}

func (k Key) String() string {
	return k.DatabasePath + "#" + k.Title
}

// groupByPath groups descriptors by database path, preserving the order in
// which paths first appear, with the set of titles wanted under each path.
func groupByPath(ds []Descriptor) (paths []string, titles map[string]map[string]struct{}) {
	titles = make(map[string]map[string]struct{})
	for _, d := range ds {
		set, ok := titles[d.DatabasePath]
		if !ok {
			set = make(map[string]struct{})
			titles[d.DatabasePath] = set
			paths = append(paths, d.DatabasePath)
		}
		set[d.Title] = struct{}{}
	}
	return paths, titles
}

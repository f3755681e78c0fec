package blit

// InternTable maps property names to small integer ids and back. It is
// append-only until Reset, and is never shared between goroutines.
type InternTable struct {
	ids   map[string]int
	names []string
}

func (t *InternTable) Len() int {
	return len(t.names)
}

func (t *InternTable) Intern(s string) int {
	if id, ok := t.ids[s]; ok {
		return id
	}
	if t.ids == nil {
		t.ids = make(map[string]int)
	}
	id := len(t.names)
	t.ids[s] = id
	t.names = append(t.names, s)
	return id
}

// InternBytes is like Intern, but only allocates a string when b is new.
func (t *InternTable) InternBytes(b []byte) int {
	if id, ok := t.ids[string(b)]; ok {
		return id
	}
	return t.Intern(string(b))
}

func (t *InternTable) Lookup(s string) (int, bool) {
	id, ok := t.ids[s]
	return id, ok
}

func (t *InternTable) Resolve(id int) string {
	return t.names[id]
}

func (t *InternTable) Reset() {
	clear(t.ids)
	clear(t.names)
	t.names = t.names[:0]
}

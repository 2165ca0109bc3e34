package registry

// Attribute is one key/value pair of an attribute list.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Attributes is an ordered attribute list. Keys are unique; insertion
// order is kept.
type Attributes []Attribute

func NewAttributes(pairs ...string) Attributes {
	attrs := make(Attributes, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		attrs.Set(pairs[i], pairs[i+1])
	}
	return attrs
}

// Find returns the index of key, or -1.
func (a Attributes) Find(key string) int {
	for i, attr := range a {
		if attr.Key == key {
			return i
		}
	}
	return -1
}

func (a Attributes) Get(key string) (string, bool) {
	if i := a.Find(key); i >= 0 {
		return a[i].Value, true
	}
	return "", false
}

// Set replaces the value of key in place, or appends it.
func (a *Attributes) Set(key, value string) {
	if i := a.Find(key); i >= 0 {
		(*a)[i].Value = value
		return
	}
	*a = append(*a, Attribute{Key: key, Value: value})
}

func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	copy(out, a)
	return out
}

package cmdline

// Param is one key=value template parameter.
type Param struct {
	Key   string
	Value any
}

// Params is an insertion-ordered map of template parameters. Setting an
// existing key replaces its value in place.
type Params struct {
	list  []Param
	index map[string]int
}

// Set adds or replaces key.
func (p *Params) Set(key string, value any) {
	if p.index == nil {
		p.index = map[string]int{}
	}
	if i, ok := p.index[key]; ok {
		p.list[i].Value = value
		return
	}
	p.index[key] = len(p.list)
	p.list = append(p.list, Param{Key: key, Value: value})
}

// Get returns the value for key.
func (p Params) Get(key string) (any, bool) {
	i, ok := p.index[key]
	if !ok {
		return nil, false
	}
	return p.list[i].Value, true
}

// Len returns the number of parameters.
func (p Params) Len() int { return len(p.list) }

// All returns the parameters in insertion order. The slice is a copy.
func (p Params) All() []Param {
	out := make([]Param, len(p.list))
	copy(out, p.list)
	return out
}

// Clone returns an independent copy. List values are copied one level deep.
func (p Params) Clone() Params {
	cp := Params{
		list:  make([]Param, len(p.list)),
		index: make(map[string]int, len(p.index)),
	}
	for i, kv := range p.list {
		if l, ok := kv.Value.([]any); ok {
			kv.Value = append([]any(nil), l...)
		}
		cp.list[i] = kv
		cp.index[kv.Key] = i
	}
	return cp
}

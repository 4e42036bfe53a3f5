package printer

import "sync"

// MemRegistry is a minimal in-memory Registry, standing in for the
// out-of-scope printer/class directory (spec.md §1). It exists so the
// dispatcher and its tests have something concrete to resolve against;
// a real daemon would wire in the actual directory/broadcast service
// here instead.
type MemRegistry struct {
	mu       sync.Mutex
	byName   map[string]*Printer
	roundRobin map[string]int // implicit class name -> next member index
}

func NewMemRegistry() *MemRegistry {
	return &MemRegistry{byName: make(map[string]*Printer), roundRobin: make(map[string]int)}
}

func (r *MemRegistry) Add(p *Printer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.byName[p.Name] = &cp
}

func (r *MemRegistry) Lookup(name string) (*Printer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (r *MemRegistry) ResolveImplicitMember(implicitClassName string) (*Printer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	class, ok := r.byName[implicitClassName]
	if !ok || !class.Implicit || len(class.Members) == 0 {
		return nil, false
	}
	start := r.roundRobin[implicitClassName]
	for i := 0; i < len(class.Members); i++ {
		idx := (start + i) % len(class.Members)
		member, ok := r.byName[class.Members[idx]]
		if ok && member.State == EState.Idle() {
			r.roundRobin[implicitClassName] = (idx + 1) % len(class.Members)
			cp := *member
			return &cp, true
		}
	}
	return nil, false
}

func (r *MemRegistry) SetState(name string, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byName[name]; ok {
		p.State = s
	}
}

func (r *MemRegistry) SetCurrentJob(name string, jobID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byName[name]; ok {
		p.CurrentJobID = jobID
	}
}

// RegisterUnknownRemote installs a stopped, remote placeholder
// destination so a job whose printer-uri doesn't resolve can still
// remain queued (spec.md §4.2 "load_all": "register it as a 'remote
// unknown' placeholder printer/class").
func (r *MemRegistry) RegisterUnknownRemote(name string) {
	r.Add(&Printer{Name: name, State: EState.Stopped(), Remote: true})
}

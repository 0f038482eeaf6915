package visibility

// Paths returns every data model path a condition reads, in the order they
// appear. Used to collect the state paths a spec depends on.
func Paths(c Condition) []string {
	w := &walker{}
	w.walk(c)
	return w.paths
}

// walker accumulates referenced paths during traversal.
type walker struct {
	paths []string
}

func (w *walker) walk(c Condition) {
	switch cond := c.(type) {
	case Path:
		w.paths = append(w.paths, cond.Path)
	case And:
		for _, sub := range cond.Conditions {
			w.walk(sub)
		}
	case Or:
		for _, sub := range cond.Conditions {
			w.walk(sub)
		}
	case Not:
		w.walk(cond.Condition)
	case Compare:
		w.operand(cond.Left)
		w.operand(cond.Right)
	}
}

func (w *walker) operand(o Operand) {
	if o.IsRef {
		w.paths = append(w.paths, o.Ref)
	}
}

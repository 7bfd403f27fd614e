package lattice

// Constant is the flat lattice over a single known value: ⊥ ⊑ {v} ⊑ ⊤ with
// every pair of distinct values incomparable. It is coarser and cheaper
// than Interval, used where the analysis only needs to know "is this
// provably one exact value" (e.g. dynamic dispatch targets).
type Constant struct {
	Bot   bool
	Top   bool
	Value int64
}

func ConstTop() Constant        { return Constant{Top: true} }
func ConstBottom() Constant     { return Constant{Bot: true} }
func ConstExact(v int64) Constant { return Constant{Value: v} }

func (c Constant) IsBottom() bool { return c.Bot }
func (c Constant) IsTop() bool    { return c.Top }

func (c Constant) Leq(d Constant) bool {
	if c.Bot {
		return true
	}
	if d.Top {
		return true
	}
	if d.Bot {
		return c.Bot
	}
	if c.Top {
		return false
	}
	return c.Value == d.Value
}

func (c Constant) Join(d Constant) Constant {
	if c.Bot {
		return d
	}
	if d.Bot {
		return c
	}
	if c.Top || d.Top {
		return ConstTop()
	}
	if c.Value == d.Value {
		return c
	}
	return ConstTop()
}

func (c Constant) Meet(d Constant) Constant {
	if c.Bot || d.Bot {
		return ConstBottom()
	}
	if c.Top {
		return d
	}
	if d.Top {
		return c
	}
	if c.Value == d.Value {
		return c
	}
	return ConstBottom()
}

// Widen on a flat lattice of finite height is Join: any two-step ascent
// already reaches ⊤.
func (c Constant) Widen(d Constant) Constant { return c.Join(d) }
func (c Constant) Narrow(d Constant) Constant {
	if d.Leq(c) {
		return d
	}
	return c
}

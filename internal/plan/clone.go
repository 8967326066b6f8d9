package plan

// Clone returns a deep copy of p.
func (p Plan) Clone() Plan {
	out := Plan{Name: p.Name}
	if p.Weeks != nil {
		out.Weeks = make([]Week, len(p.Weeks))
		for i, w := range p.Weeks {
			out.Weeks[i] = w.Clone()
		}
	}
	return out
}

func (w Week) Clone() Week {
	out := Week{}
	if w.Days != nil {
		out.Days = make([]Day, len(w.Days))
		for i, d := range w.Days {
			out.Days[i] = d.Clone()
		}
	}
	return out
}

func (d Day) Clone() Day {
	out := Day{}
	if d.Sessions != nil {
		out.Sessions = make([]Session, len(d.Sessions))
		for i, s := range d.Sessions {
			out.Sessions[i] = s.Clone()
		}
	}
	return out
}

func (s Session) Clone() Session {
	out := s
	if s.Details.Movements != nil {
		out.Details.Movements = append([]Movement(nil), s.Details.Movements...)
	}
	if s.Details.Activities != nil {
		out.Details.Activities = append([]string(nil), s.Details.Activities...)
	}
	return out
}

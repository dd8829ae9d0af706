package plan

import "fmt"

// Violation is a plan entry listed before a table it references.
type Violation struct {
	Table  string
	Parent string
	// Missing is set when the parent is not in the plan at all.
	Missing bool
}

func (v Violation) String() string {
	if v.Missing {
		return fmt.Sprintf("%s references %s, which is not in the plan", v.Table, v.Parent)
	}
	return fmt.Sprintf("%s is listed before %s, which it references", v.Table, v.Parent)
}

// CheckOrder audits the plan against foreign keys discovered in a store,
// given as child table → referenced tables. Only destination tables that
// appear in the plan are checked.
func (p *Plan) CheckOrder(refs map[string][]string) []Violation {
	pos := make(map[string]int, len(p.Tables))
	for i, t := range p.Tables {
		pos[t.DestTable()] = i
	}

	var out []Violation
	for i, t := range p.Tables {
		seen := map[string]bool{}
		for _, parent := range refs[t.DestTable()] {
			if parent == t.DestTable() || seen[parent] {
				continue
			}
			seen[parent] = true
			j, ok := pos[parent]
			switch {
			case !ok:
				out = append(out, Violation{Table: t.Name, Parent: parent, Missing: true})
			case j > i:
				out = append(out, Violation{Table: t.Name, Parent: parent})
			}
		}
	}
	return out
}

package sixw

// Merged is the result of merging the project, work item and task contexts.
// Sources records which level supplied each populated field.
type Merged struct {
	Context
	Sources map[Field]Level `json:"sources"`
}

// Completeness is the fraction of the 15 fields populated after the merge.
func (m Merged) Completeness() float64 {
	return m.Context.Completeness()
}

// Merge combines three levels field by field. For each field the most specific
// level holding a non-empty value wins wholesale (task, then work item, then
// project); lists are replaced, never concatenated. Inputs are never mutated
// and the result shares no backing arrays with them. Nil levels are treated as
// empty contexts.
func Merge(project, workItem, task *Context) Merged {
	out := Merged{Context: Empty(), Sources: make(map[Field]Level)}

	levels := []struct {
		level Level
		ctx   *Context
	}{
		{LevelTask, normalized(task)},
		{LevelWorkItem, normalized(workItem)},
		{LevelProject, normalized(project)},
	}

	for _, f := range AllFields {
		op := fieldOps[f]
		for _, l := range levels {
			if l.ctx == nil || !op.isSet(l.ctx) {
				continue
			}
			op.copy(&out.Context, l.ctx)
			out.Sources[f] = l.level
			break
		}
	}

	return out
}

// normalized returns a normalized shallow copy; Normalize allocates fresh
// slices so the caller's backing arrays are left untouched.
func normalized(c *Context) *Context {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Normalize()
	return &cp
}

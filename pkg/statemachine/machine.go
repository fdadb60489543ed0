package statemachine

// Machine is one run over a Table. It is not safe for concurrent use.
type Machine struct {
	table   *Table
	current State
	history []State
}

func (m *Machine) Current() State { return m.current }

// History returns the states visited so far, oldest first.
func (m *Machine) History() []State {
	return append([]State(nil), m.history...)
}

// Terminal reports whether the run can no longer move.
func (m *Machine) Terminal() bool {
	return m.table.IsTerminal(m.current)
}

// Can reports whether event is accepted in the current state.
func (m *Machine) Can(event Event) bool {
	_, err := m.table.Next(m.current, event)
	return err == nil
}

// Fire follows event from the current state. On error the run stays where
// it was.
func (m *Machine) Fire(event Event) error {
	to, err := m.table.Next(m.current, event)
	if err != nil {
		return err
	}
	m.current = to
	m.history = append(m.history, to)
	return nil
}

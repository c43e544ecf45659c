package engine

import (
	"fmt"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/cell"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/metrics"
)

// CellManager owns the fixed pool of holding cells. It is the only writer of
// cell occupancy; assignment is first-fit in index order so the pool fills
// deterministically.
type CellManager struct {
	cells []*cell.Cell

	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Metrics

	// onVacancy fires after a cell frees up, so waiting bookings can retry.
	onVacancy func(nowMinutes float64)
}

// NewCellManager creates a pool of count empty cells.
func NewCellManager(count int, eventLog *events.EventLog, log *logger.Logger, m *metrics.Metrics) *CellManager {
	cells := make([]*cell.Cell, count)
	for i := range cells {
		cells[i] = cell.New(i)
	}
	return &CellManager{
		cells:    cells,
		eventLog: eventLog,
		logger:   log,
		metrics:  m,
	}
}

// SetVacancyCallback wires the retry hook for bookings blocked on capacity.
func (m *CellManager) SetVacancyCallback(fn func(nowMinutes float64)) {
	m.onVacancy = fn
}

// Assign claims the lowest-index vacant cell for a subject. A subject already
// holding a cell keeps it; a full pool returns ErrNoCellsAvailable.
func (m *CellManager) Assign(id subject.ID, nowMinutes float64) (int, error) {
	if idx, ok := m.CellOf(id); ok {
		m.logger.Debugf("subject %s already holds cell %d", id, idx)
		return idx, nil
	}
	for _, c := range m.cells {
		if !c.Claim(id) {
			continue
		}
		m.metrics.CellsOccupied.Set(float64(m.OccupiedCount()))
		m.eventLog.Append(events.GameEvent{
			Type:        events.EventTypeCellAssigned,
			SubjectID:   string(id),
			Payload:     map[string]int{"cell_index": c.Index},
			GameMinutes: nowMinutes,
		})
		m.logger.Infof("cell %d assigned to subject %s", c.Index, id)
		return c.Index, nil
	}
	return -1, ErrNoCellsAvailable
}

// Release vacates a cell by index. Releasing a vacant cell is a no-op, which
// makes double-release during forced recovery harmless.
func (m *CellManager) Release(index int, nowMinutes float64) {
	if index < 0 || index >= len(m.cells) {
		m.logger.Warnf("release of unknown cell index %d ignored", index)
		return
	}
	c := m.cells[index]
	if c.Vacant() {
		m.logger.Debugf("cell %d already vacant", index)
		return
	}
	occupant := c.Occupant
	c.Clear()
	m.metrics.CellsOccupied.Set(float64(m.OccupiedCount()))
	m.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeCellReleased,
		SubjectID:   string(occupant),
		Payload:     map[string]int{"cell_index": index},
		GameMinutes: nowMinutes,
	})
	m.logger.Infof("cell %d released (was %s)", index, occupant)
	if m.onVacancy != nil {
		m.onVacancy(nowMinutes)
	}
}

// ReleaseBySubject vacates whichever cell the subject occupies.
func (m *CellManager) ReleaseBySubject(id subject.ID, nowMinutes float64) (int, bool) {
	idx, ok := m.CellOf(id)
	if !ok {
		return -1, false
	}
	m.Release(idx, nowMinutes)
	return idx, true
}

// SetDoorLocked toggles the door on an occupied cell.
func (m *CellManager) SetDoorLocked(index int, locked bool) error {
	if index < 0 || index >= len(m.cells) {
		return fmt.Errorf("unknown cell index %d", index)
	}
	m.cells[index].DoorLocked = locked
	return nil
}

// CellOf returns the index of the cell the subject occupies.
func (m *CellManager) CellOf(id subject.ID) (int, bool) {
	for _, c := range m.cells {
		if c.Occupant == id {
			return c.Index, true
		}
	}
	return -1, false
}

// OccupiedCount returns how many cells hold a subject.
func (m *CellManager) OccupiedCount() int {
	n := 0
	for _, c := range m.cells {
		if !c.Vacant() {
			n++
		}
	}
	return n
}

// Capacity returns the fixed pool size.
func (m *CellManager) Capacity() int {
	return len(m.cells)
}

// Snapshot returns a copy of the current pool state.
func (m *CellManager) Snapshot() []cell.Cell {
	out := make([]cell.Cell, len(m.cells))
	for i, c := range m.cells {
		out[i] = *c
	}
	return out
}

package engine

import (
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/item"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
)

// ContrabandChecker is the slice of the inventory ledger that parole
// supervision needs: can a search turn anything up.
type ContrabandChecker interface {
	HasContraband(id subject.ID) bool
}

// InventoryLedger tracks what each subject carries and what the facility
// holds in storage for them. Booking moves property into storage and issues
// the intake kit; release reverses both. Non-storable contraband is seized
// at drop-off and never returned.
type InventoryLedger struct {
	carried map[subject.ID]map[item.ItemType]int
	stored  map[subject.ID]map[item.ItemType]int

	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewInventoryLedger creates an empty ledger.
func NewInventoryLedger(eventLog *events.EventLog, log *logger.Logger) *InventoryLedger {
	return &InventoryLedger{
		carried:  make(map[subject.ID]map[item.ItemType]int),
		stored:   make(map[subject.ID]map[item.ItemType]int),
		eventLog: eventLog,
		logger:   log,
	}
}

// Add puts quantity of an item into a subject's carried inventory.
func (l *InventoryLedger) Add(id subject.ID, t item.ItemType, qty int) {
	if qty <= 0 {
		return
	}
	if l.carried[id] == nil {
		l.carried[id] = make(map[item.ItemType]int)
	}
	l.carried[id][t] += qty
}

// Remove takes up to quantity of an item from a subject's carried inventory.
func (l *InventoryLedger) Remove(id subject.ID, t item.ItemType, qty int) {
	held := l.carried[id]
	if held == nil {
		return
	}
	held[t] -= qty
	if held[t] <= 0 {
		delete(held, t)
	}
}

// Carried returns a copy of what the subject currently holds.
func (l *InventoryLedger) Carried(id subject.ID) []item.ItemStack {
	return stacksOf(l.carried[id])
}

// Stored returns a copy of what the facility holds for the subject.
func (l *InventoryLedger) Stored(id subject.ID) []item.ItemStack {
	return stacksOf(l.stored[id])
}

// HasContraband reports whether the subject carries any contraband item.
func (l *InventoryLedger) HasContraband(id subject.ID) bool {
	for t, qty := range l.carried[id] {
		if qty > 0 && item.IsContraband(t) {
			return true
		}
	}
	return false
}

// StoreForIntake processes the booking drop-off: storable property moves to
// facility storage, non-storable contraband is seized outright.
func (l *InventoryLedger) StoreForIntake(id subject.ID, nowMinutes float64) {
	held := l.carried[id]
	if len(held) == 0 {
		return
	}
	var storedStacks, seizedStacks []item.ItemStack
	for t, qty := range held {
		def, ok := item.GetItem(t)
		switch {
		case ok && def.Storable:
			if l.stored[id] == nil {
				l.stored[id] = make(map[item.ItemType]int)
			}
			l.stored[id][t] += qty
			storedStacks = append(storedStacks, item.ItemStack{Type: t, Quantity: qty})
		case ok && def.Contraband:
			seizedStacks = append(seizedStacks, item.ItemStack{Type: t, Quantity: qty})
			l.logger.Warnf("seized %dx %s from subject %s at intake", qty, t, id)
		default:
			// Unclassified property rides along into storage.
			if l.stored[id] == nil {
				l.stored[id] = make(map[item.ItemType]int)
			}
			l.stored[id][t] += qty
			storedStacks = append(storedStacks, item.ItemStack{Type: t, Quantity: qty})
		}
		delete(held, t)
	}
	l.eventLog.Append(events.GameEvent{
		Type:      events.EventTypeItemsStored,
		SubjectID: string(id),
		Payload: map[string]interface{}{
			"stored": storedStacks,
			"seized": seizedStacks,
		},
		GameMinutes: nowMinutes,
	})
}

// IssueIntakeKit hands out the facility-issued items at booking pickup.
func (l *InventoryLedger) IssueIntakeKit(id subject.ID, nowMinutes float64) {
	var issued []item.ItemStack
	for t, def := range item.Registry {
		if !def.Issued || t == item.ItemMealTray {
			continue
		}
		l.Add(id, t, 1)
		issued = append(issued, item.ItemStack{Type: t, Quantity: 1})
	}
	l.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeItemsIssued,
		SubjectID:   string(id),
		Payload:     map[string]interface{}{"issued": issued},
		GameMinutes: nowMinutes,
	})
}

// ReturnStored reverses intake: issued items are surrendered and stored
// property comes back to the subject's inventory.
func (l *InventoryLedger) ReturnStored(id subject.ID, nowMinutes float64) {
	for t := range l.carried[id] {
		if def, ok := item.GetItem(t); ok && def.Issued {
			delete(l.carried[id], t)
		}
	}
	returned := stacksOf(l.stored[id])
	for t, qty := range l.stored[id] {
		l.Add(id, t, qty)
	}
	delete(l.stored, id)
	l.eventLog.Append(events.GameEvent{
		Type:        events.EventTypeItemsReturned,
		SubjectID:   string(id),
		Payload:     map[string]interface{}{"returned": returned},
		GameMinutes: nowMinutes,
	})
}

func stacksOf(held map[item.ItemType]int) []item.ItemStack {
	if len(held) == 0 {
		return nil
	}
	out := make([]item.ItemStack, 0, len(held))
	for t, qty := range held {
		if qty > 0 {
			out = append(out, item.ItemStack{Type: t, Quantity: qty})
		}
	}
	return out
}

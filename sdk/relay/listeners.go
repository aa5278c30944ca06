package relay

// ListenerID identifies a registered callback so it can be removed later.
// The zero value never identifies a registration.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn func()
}

// Listeners is an ordered callback registry. Registering the same function
// twice yields two registrations, each notified once per event. The zero
// value is ready to use.
type Listeners struct {
	next    ListenerID
	entries []listenerEntry
}

// Add registers fn and returns its handle. A nil fn is ignored.
func (l *Listeners) Add(fn func()) ListenerID {
	if fn == nil {
		return 0
	}
	l.next++
	l.entries = append(l.entries, listenerEntry{id: l.next, fn: fn})
	return l.next
}

// Remove drops the registration with the given handle and reports whether it existed.
func (l *Listeners) Remove(id ListenerID) bool {
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registrations.
func (l *Listeners) Len() int {
	return len(l.entries)
}

// Notify calls every registered callback in registration order. Callbacks
// added or removed while notifying take effect from the next Notify.
func (l *Listeners) Notify() {
	if len(l.entries) == 0 {
		return
	}
	snapshot := make([]listenerEntry, len(l.entries))
	copy(snapshot, l.entries)
	for _, e := range snapshot {
		e.fn()
	}
}

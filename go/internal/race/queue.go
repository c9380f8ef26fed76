package race

// Queue is the FIFO list of sessions waiting to go on track. The head is
// always the next session to run.
type Queue []Session

func (q Queue) Count() int { return len(q) }

func (q Queue) Clone() Queue {
	if q == nil {
		return Queue{}
	}
	out := make(Queue, len(q))
	for i := range q {
		out[i] = *q[i].Clone()
	}
	return out
}

// Head returns the next session without removing it, or nil when empty.
func (q Queue) Head() *Session {
	if len(q) == 0 {
		return nil
	}
	return &q[0]
}

// Enqueue appends a session at the tail.
func (q *Queue) Enqueue(s Session) {
	*q = append(*q, s)
}

// Promote removes and returns the head session. The second return is false
// when the queue is empty.
func (q *Queue) Promote() (Session, bool) {
	if len(*q) == 0 {
		return Session{}, false
	}
	head := (*q)[0]
	*q = (*q)[1:]
	return head, true
}

// Remove deletes the queued session with the given id, preserving the order
// of the rest. Returns false when no session matches.
func (q *Queue) Remove(id string) bool {
	for i := range *q {
		if (*q)[i].ID == id {
			*q = append((*q)[:i], (*q)[i+1:]...)
			return true
		}
	}
	return false
}

package game

type envelope struct {
	event   string
	payload any
}

// outbox collects room events during a job. They are sent only after the
// job's state has been persisted.
type outbox []envelope

func (o *outbox) add(event string, payload any) {
	*o = append(*o, envelope{event: event, payload: payload})
}

func (rm *RoomManager) flush(code string, o outbox) {
	for _, e := range o {
		rm.broadcast(code, e.event, e.payload)
	}
}

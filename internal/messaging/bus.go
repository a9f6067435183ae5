package messaging

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

const subjectPrefix = "room."

// Envelope is the wire form of one room event.
type Envelope struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Subject returns the NATS subject for a room code.
func Subject(roomCode string) string {
	return subjectPrefix + roomCode
}

// Deliverer receives relayed events. The socket gateway implements it.
type Deliverer interface {
	Deliver(roomCode, event string, payload json.RawMessage)
}

// Bus publishes engine events to NATS. It satisfies game.Broadcaster.
type Bus struct {
	server *NatsServer
}

func NewBus(server *NatsServer) *Bus {
	return &Bus{server: server}
}

func (b *Bus) Broadcast(roomCode, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("room", roomCode).Str("event", event).Msg("encode event")
		return
	}
	data, err := json.Marshal(Envelope{Room: roomCode, Event: event, Payload: raw})
	if err != nil {
		log.Error().Err(err).Str("room", roomCode).Str("event", event).Msg("encode envelope")
		return
	}
	if err := b.server.Publish(Subject(roomCode), data); err != nil {
		log.Error().Err(err).Str("room", roomCode).Str("event", event).Msg("publish event")
	}
}

// Relay forwards every room event on the bus to d until the returned func is
// called.
func (b *Bus) Relay(d Deliverer) (func(), error) {
	return b.server.Subscribe(subjectPrefix+"*", func(subject string, data []byte) {
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Str("subject", subject).Msg("dropping malformed event")
			return
		}
		if env.Room == "" {
			env.Room = strings.TrimPrefix(subject, subjectPrefix)
		}
		d.Deliver(env.Room, env.Event, env.Payload)
	})
}

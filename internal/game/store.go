package game

import "context"

// Store persists rooms and players. Every method that writes more than one
// row does so in a single transaction.
type Store interface {
	// CreateRoom inserts room and sets its ID. Returns ErrRoomCodeTaken on a
	// duplicate code.
	CreateRoom(ctx context.Context, room *Room) error
	// GetRoom returns ErrRoomNotFound for unknown codes.
	GetRoom(ctx context.Context, code string) (*Room, error)
	ListRooms(ctx context.Context, status Status) ([]*Room, error)
	// ListPlayers returns the room's players in join order.
	ListPlayers(ctx context.Context, roomID int64) ([]*Player, error)
	// AddPlayer inserts p and, when room has no host, makes p the host.
	AddPlayer(ctx context.Context, room *Room, p *Player) error
	// RemovePlayer deletes the player and writes the room row.
	RemovePlayer(ctx context.Context, room *Room, playerID int64) error
	// SaveRoom writes the room and the given players.
	SaveRoom(ctx context.Context, room *Room, players []*Player) error
	// DeleteRoom removes the room and its players.
	DeleteRoom(ctx context.Context, roomID int64) error
}

package game

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrRoomFinished   = errors.New("room has finished")
	ErrRoomFull       = errors.New("room is full")
	ErrGameInProgress = errors.New("game already in progress")
	ErrWrongRoom      = errors.New("player belongs to another room")
	ErrRoomCodeTaken  = errors.New("room code taken")
	ErrCorruptState   = errors.New("corrupt game state")

	ErrNotHost      = errors.New("not host")
	ErrNotChooser   = errors.New("not the chooser")
	ErrAlreadyActed = errors.New("already acted this round")

	ErrInvalidRoom         = errors.New("invalid room parameters")
	ErrInvalidName         = errors.New("invalid username")
	ErrNotReady            = errors.New("not all players are ready")
	ErrMissingCharacter    = errors.New("not all players have a character")
	ErrCharacterExists     = errors.New("character already generated")
	ErrNoPlayers           = errors.New("room has no players")
	ErrNotPlaying          = errors.New("game is not in progress")
	ErrNotInBattle         = errors.New("no battle in progress")
	ErrPlayerDefeated      = errors.New("player is defeated")
	ErrInvalidAction       = errors.New("invalid action")
	ErrUnknownSkill        = errors.New("unknown skill")
	ErrSkillMismatch       = errors.New("skill does not fit the action")
	ErrInsufficientStamina = errors.New("not enough stamina")
	ErrNoPendingEvent      = errors.New("no pending npc event")
	ErrInvalidChoice       = errors.New("invalid choice")
	ErrBattleInProgress    = errors.New("resolve the current node first")
)

var userErrors = []error{
	ErrRoomNotFound, ErrPlayerNotFound, ErrRoomFinished, ErrRoomFull, ErrGameInProgress, ErrWrongRoom,
	ErrNotHost, ErrNotChooser, ErrAlreadyActed,
	ErrInvalidRoom, ErrInvalidName, ErrNotReady, ErrMissingCharacter, ErrCharacterExists, ErrNoPlayers,
	ErrNotPlaying, ErrNotInBattle, ErrPlayerDefeated, ErrInvalidAction, ErrUnknownSkill, ErrSkillMismatch,
	ErrInsufficientStamina, ErrNoPendingEvent, ErrInvalidChoice, ErrBattleInProgress,
}

// IsUserError reports whether err is a rejection the caller caused and may
// see verbatim. Anything else is internal.
func IsUserError(err error) bool {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

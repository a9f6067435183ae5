// Package sqlite persists rooms and players in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kiliankoe/gptdungeon/internal/game"
	"github.com/kiliankoe/gptdungeon/internal/storage/sqlite/migrations"
	"github.com/kiliankoe/gptdungeon/internal/storage/sqlitemigrate"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store implements game.Store.
type Store struct {
	sqlDB *sql.DB
}

var _ game.Store = (*Store)(nil)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens (or creates) the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

const roomColumns = `id, code, host_name, host_id, theme, difficulty, node_count, language,
	status, dungeon, node_index, game_state, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(row scanner) (*game.Room, error) {
	var (
		r                    game.Room
		dungeonJSON, stateJS string
		createdAt, updatedAt int64
	)
	err := row.Scan(&r.ID, &r.Code, &r.HostName, &r.HostID, &r.Theme, &r.Difficulty, &r.NodeCount, &r.Language,
		&r.Status, &dungeonJSON, &r.NodeIndex, &stateJS, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(dungeonJSON), &r.Dungeon); err != nil {
		return nil, fmt.Errorf("decode dungeon for room %s: %w", r.Code, err)
	}
	if err := json.Unmarshal([]byte(stateJS), &r.State); err != nil {
		return nil, fmt.Errorf("%w: room %s: %v", game.ErrCorruptState, r.Code, err)
	}
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	return &r, nil
}

func encodeRoom(r *game.Room) (dungeonJSON, stateJSON string, err error) {
	d, err := json.Marshal(r.Dungeon)
	if err != nil {
		return "", "", fmt.Errorf("encode dungeon: %w", err)
	}
	st, err := json.Marshal(r.State)
	if err != nil {
		return "", "", fmt.Errorf("encode game state: %w", err)
	}
	return string(d), string(st), nil
}

func (s *Store) CreateRoom(ctx context.Context, r *game.Room) error {
	dungeonJSON, stateJSON, err := encodeRoom(r)
	if err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO rooms (code, host_name, host_id, theme, difficulty, node_count, language,
		   status, dungeon, node_index, game_state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Code, r.HostName, r.HostID, r.Theme, string(r.Difficulty), r.NodeCount, r.Language,
		string(r.Status), dungeonJSON, r.NodeIndex, stateJSON, toMillis(r.CreatedAt), toMillis(r.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return game.ErrRoomCodeTaken
		}
		return fmt.Errorf("create room: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	r.ID = id
	return nil
}

func (s *Store) GetRoom(ctx context.Context, code string) (*game.Room, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE code = ?`, code)
	r, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return r, nil
}

// ListRooms returns rooms newest first. An empty status lists all.
func (s *Store) ListRooms(ctx context.Context, status game.Status) ([]*game.Room, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = s.sqlDB.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY created_at DESC, id DESC`)
	} else {
		rows, err = s.sqlDB.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE status = ? ORDER BY created_at DESC, id DESC`, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []*game.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("list rooms: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return out, nil
}

func (s *Store) ListPlayers(ctx context.Context, roomID int64) ([]*game.Player, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, room_id, username, conn_id, is_ready, character_sheet, current_hp, current_stamina, is_alive, joined_at
		   FROM players
		  WHERE room_id = ?
		  ORDER BY joined_at ASC, id ASC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var out []*game.Player
	for rows.Next() {
		var (
			p             game.Player
			characterJSON string
			joinedAt      int64
		)
		if err := rows.Scan(&p.ID, &p.RoomID, &p.Username, &p.ConnID, &p.IsReady, &characterJSON,
			&p.HP, &p.Stamina, &p.IsAlive, &joinedAt); err != nil {
			return nil, fmt.Errorf("list players: %w", err)
		}
		if err := json.Unmarshal([]byte(characterJSON), &p.Character); err != nil {
			return nil, fmt.Errorf("decode character for player %d: %w", p.ID, err)
		}
		p.JoinedAt = fromMillis(joinedAt)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return out, nil
}

func (s *Store) AddPlayer(ctx context.Context, r *game.Room, p *game.Player) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		characterJSON, err := json.Marshal(p.Character)
		if err != nil {
			return fmt.Errorf("encode character: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO players (room_id, username, conn_id, is_ready, character_sheet, current_hp, current_stamina, is_alive, joined_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, p.Username, p.ConnID, p.IsReady, string(characterJSON), p.HP, p.Stamina, p.IsAlive, toMillis(p.JoinedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s is taken", game.ErrInvalidName, p.Username)
			}
			return fmt.Errorf("add player: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("add player: %w", err)
		}
		p.ID = id
		p.RoomID = r.ID
		if r.HostID != 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE rooms SET host_id = ? WHERE id = ? AND host_id = 0`, id, r.ID); err != nil {
			return fmt.Errorf("assign host: %w", err)
		}
		r.HostID = id
		return nil
	})
}

func (s *Store) RemovePlayer(ctx context.Context, r *game.Room, playerID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM players WHERE id = ? AND room_id = ?`, playerID, r.ID); err != nil {
			return fmt.Errorf("remove player: %w", err)
		}
		return updateRoom(ctx, tx, r)
	})
}

// SaveRoom writes the room row and the given players in one transaction.
func (s *Store) SaveRoom(ctx context.Context, r *game.Room, players []*game.Player) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateRoom(ctx, tx, r); err != nil {
			return err
		}
		for _, p := range players {
			characterJSON, err := json.Marshal(p.Character)
			if err != nil {
				return fmt.Errorf("encode character: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE players
				    SET conn_id = ?, is_ready = ?, character_sheet = ?, current_hp = ?, current_stamina = ?, is_alive = ?
				  WHERE id = ? AND room_id = ?`,
				p.ConnID, p.IsReady, string(characterJSON), p.HP, p.Stamina, p.IsAlive, p.ID, r.ID,
			); err != nil {
				return fmt.Errorf("save player %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

func updateRoom(ctx context.Context, tx *sql.Tx, r *game.Room) error {
	dungeonJSON, stateJSON, err := encodeRoom(r)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE rooms
		    SET host_id = ?, status = ?, dungeon = ?, node_index = ?, game_state = ?, updated_at = ?
		  WHERE id = ?`,
		r.HostID, string(r.Status), dungeonJSON, r.NodeIndex, stateJSON, toMillis(r.UpdatedAt), r.ID,
	)
	if err != nil {
		return fmt.Errorf("save room: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return game.ErrRoomNotFound
	}
	return nil
}

func (s *Store) DeleteRoom(ctx context.Context, roomID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM players WHERE room_id = ?`, roomID); err != nil {
			return fmt.Errorf("delete players: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, roomID); err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/okian/podium/internal/domain/ledger"
	"github.com/okian/podium/internal/domain/model"
)

// Ledger stores bonus grants in the bonus_grants table.
// The UNIQUE (player_id, session_id, stream_id) constraint is the idempotency guard.
type Ledger struct {
	db *sqlx.DB
}

var _ ledger.Ledger = (*Ledger)(nil)

// NewLedger returns a ledger on db. The schema must already be migrated.
func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

type grantRow struct {
	ID        string `db:"id"`
	PlayerID  string `db:"player_id"`
	SessionID string `db:"session_id"`
	StreamID  string `db:"stream_id"`
	Amount    int64  `db:"amount"`
	GrantedAt int64  `db:"granted_at"`
}

const insertGrantSQL = `INSERT INTO bonus_grants (id, player_id, session_id, stream_id, amount, granted_at)
VALUES (:id, :player_id, :session_id, :stream_id, :amount, :granted_at)`

// Reserve implements ledger.Ledger.
func (l *Ledger) Reserve(ctx context.Context, g model.BonusGrant) (ledger.Outcome, error) {
	row := grantRow{
		ID:        g.ID,
		PlayerID:  g.PlayerID,
		SessionID: g.SessionID,
		StreamID:  g.StreamID,
		Amount:    g.Amount,
		GrantedAt: toMillis(g.GrantedAt),
	}
	if _, err := l.db.NamedExecContext(ctx, insertGrantSQL, row); err != nil {
		if isUniqueViolation(err) {
			return ledger.AlreadyGranted, nil
		}
		return 0, fmt.Errorf("reserve grant: %w", err)
	}
	return ledger.Reserved, nil
}

// Release implements ledger.Ledger.
func (l *Ledger) Release(ctx context.Context, key model.GrantKey, grantID string) error {
	q := l.db.Rebind(`DELETE FROM bonus_grants WHERE player_id = ? AND session_id = ? AND stream_id = ? AND id = ?`)
	if _, err := l.db.ExecContext(ctx, q, key.PlayerID, key.SessionID, key.StreamID, grantID); err != nil {
		return fmt.Errorf("release grant: %w", err)
	}
	return nil
}

// Lookup returns the grant stored for key, if any.
func (l *Ledger) Lookup(ctx context.Context, key model.GrantKey) (model.BonusGrant, bool, error) {
	var rows []grantRow
	q := l.db.Rebind(`SELECT id, player_id, session_id, stream_id, amount, granted_at
FROM bonus_grants WHERE player_id = ? AND session_id = ? AND stream_id = ?`)
	if err := l.db.SelectContext(ctx, &rows, q, key.PlayerID, key.SessionID, key.StreamID); err != nil {
		return model.BonusGrant{}, false, fmt.Errorf("lookup grant: %w", err)
	}
	if len(rows) == 0 {
		return model.BonusGrant{}, false, nil
	}
	r := rows[0]
	return model.BonusGrant{
		ID:        r.ID,
		PlayerID:  r.PlayerID,
		SessionID: r.SessionID,
		StreamID:  r.StreamID,
		Amount:    r.Amount,
		GrantedAt: fromMillis(r.GrantedAt),
	}, true, nil
}

// Ping checks the connection.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}

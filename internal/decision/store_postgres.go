package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"deltaker/internal/participant"
	id "deltaker/pkg/domain"
	"deltaker/pkg/platform/sentinel"
)

// PostgresStore backs the single-undecided invariant with the partial
// unique index on (deltaker_id) WHERE fattet IS NULL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const uniqueViolation = "23505"

const vedtakColumns = `
	id, deltaker_id, fattet, gyldig_til, deltaker_ved_vedtak, fattet_av_nav,
	opprettet, opprettet_av, opprettet_av_enhet,
	sist_endret, sist_endret_av, sist_endret_av_enhet`

func (s *PostgresStore) Get(ctx context.Context, vedtakID id.VedtakID) (Vedtak, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+vedtakColumns+` FROM vedtak WHERE id = $1`, uuid.UUID(vedtakID))
	v, err := scanVedtak(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vedtak{}, sentinel.ErrNotFound
	}
	return v, err
}

func (s *PostgresStore) FindUndecided(ctx context.Context, deltakerID id.DeltakerID) (Vedtak, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+vedtakColumns+` FROM vedtak WHERE deltaker_id = $1 AND fattet IS NULL`,
		uuid.UUID(deltakerID))
	v, err := scanVedtak(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vedtak{}, sentinel.ErrNotFound
	}
	return v, err
}

func (s *PostgresStore) ListDecided(ctx context.Context, deltakerID id.DeltakerID) ([]Vedtak, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+vedtakColumns+` FROM vedtak WHERE deltaker_id = $1 AND fattet IS NOT NULL ORDER BY fattet`,
		uuid.UUID(deltakerID))
	if err != nil {
		return nil, fmt.Errorf("query vedtak for %s: %w", deltakerID, err)
	}
	defer rows.Close()

	var out []Vedtak
	for rows.Next() {
		v, err := scanVedtak(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Upsert(ctx context.Context, v Vedtak) error {
	snapshot, err := json.Marshal(participant.EncodeSnapshot(v.DeltakerVedVedtak))
	if err != nil {
		return fmt.Errorf("marshal vedtak snapshot: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO vedtak (
			id, deltaker_id, fattet, gyldig_til, deltaker_ved_vedtak, fattet_av_nav,
			opprettet, opprettet_av, opprettet_av_enhet,
			sist_endret, sist_endret_av, sist_endret_av_enhet
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			fattet = EXCLUDED.fattet,
			gyldig_til = EXCLUDED.gyldig_til,
			deltaker_ved_vedtak = EXCLUDED.deltaker_ved_vedtak,
			fattet_av_nav = EXCLUDED.fattet_av_nav,
			sist_endret = EXCLUDED.sist_endret,
			sist_endret_av = EXCLUDED.sist_endret_av,
			sist_endret_av_enhet = EXCLUDED.sist_endret_av_enhet
	`,
		uuid.UUID(v.ID), uuid.UUID(v.DeltakerID), v.Fattet, v.GyldigTil, snapshot, v.FattetAvNav,
		v.Opprettet, string(v.OpprettetAv.Ident), string(v.OpprettetAv.Enhet),
		v.SistEndret, string(v.SistEndretAv.Ident), string(v.SistEndretAv.Enhet),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("undecided vedtak already exists for record %s: %w", v.DeltakerID, sentinel.ErrConflict)
		}
		return fmt.Errorf("upsert vedtak %s: %w", v.ID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, vedtakID id.VedtakID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM vedtak WHERE id = $1`, uuid.UUID(vedtakID)); err != nil {
		return fmt.Errorf("delete vedtak %s: %w", vedtakID, err)
	}
	return nil
}

func scanVedtak(row pgx.Row) (Vedtak, error) {
	var (
		v             Vedtak
		vedtakID      uuid.UUID
		deltakerID    uuid.UUID
		snapshot      []byte
		opprettetAv   string
		opprettetEnh  string
		sistEndretAv  string
		sistEndretEnh string
	)
	if err := row.Scan(
		&vedtakID, &deltakerID, &v.Fattet, &v.GyldigTil, &snapshot, &v.FattetAvNav,
		&v.Opprettet, &opprettetAv, &opprettetEnh,
		&v.SistEndret, &sistEndretAv, &sistEndretEnh,
	); err != nil {
		return Vedtak{}, err
	}
	v.ID = id.VedtakID(vedtakID)
	v.DeltakerID = id.DeltakerID(deltakerID)
	v.OpprettetAv = id.Actor{Ident: id.NavIdent(opprettetAv), Enhet: id.Enhetsnummer(opprettetEnh)}
	v.SistEndretAv = id.Actor{Ident: id.NavIdent(sistEndretAv), Enhet: id.Enhetsnummer(sistEndretEnh)}

	var dto participant.SnapshotDTO
	if err := json.Unmarshal(snapshot, &dto); err != nil {
		return Vedtak{}, fmt.Errorf("unmarshal vedtak snapshot: %w", err)
	}
	d, err := participant.DecodeSnapshot(dto)
	if err != nil {
		return Vedtak{}, err
	}
	v.DeltakerVedVedtak = d
	return v, nil
}

package consent

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

// PostgresStore enforces the single-pending invariant with the partial
// unique index on (deltaker_id) WHERE gitt IS NULL; a violation surfaces as
// sentinel.ErrConflict.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const uniqueViolation = "23505"

type godkjenningDTO struct {
	Begrunnelse string `json:"begrunnelse"`
	Ident       string `json:"ident"`
	Enhet       string `json:"enhet,omitempty"`
}

func (s *PostgresStore) Get(ctx context.Context, samtykkeID id.SamtykkeID) (Samtykke, error) {
	return s.get(ctx, `WHERE id = $1`, uuid.UUID(samtykkeID))
}

func (s *PostgresStore) FindPending(ctx context.Context, deltakerID id.DeltakerID) (Samtykke, error) {
	return s.get(ctx, `WHERE deltaker_id = $1 AND gitt IS NULL`, uuid.UUID(deltakerID))
}

func (s *PostgresStore) get(ctx context.Context, where string, arg any) (Samtykke, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, deltaker_id, gitt, gyldig_til, deltaker, godkjent_av_nav, opprettet, sist_endret
		FROM samtykke `+where, arg)
	st, err := scanSamtykke(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Samtykke{}, sentinel.ErrNotFound
	}
	return st, err
}

func (s *PostgresStore) ListByDeltaker(ctx context.Context, deltakerID id.DeltakerID) ([]Samtykke, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, deltaker_id, gitt, gyldig_til, deltaker, godkjent_av_nav, opprettet, sist_endret
		FROM samtykke WHERE deltaker_id = $1
		ORDER BY opprettet
	`, uuid.UUID(deltakerID))
	if err != nil {
		return nil, fmt.Errorf("query samtykker for %s: %w", deltakerID, err)
	}
	defer rows.Close()

	var out []Samtykke
	for rows.Next() {
		st, err := scanSamtykke(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Upsert(ctx context.Context, st Samtykke) error {
	snapshot, err := json.Marshal(participant.EncodeSnapshot(st.Deltaker))
	if err != nil {
		return fmt.Errorf("marshal samtykke snapshot: %w", err)
	}
	var godkjenning []byte
	if st.GodkjentAvNav != nil {
		godkjenning, err = json.Marshal(godkjenningDTO{
			Begrunnelse: st.GodkjentAvNav.Begrunnelse,
			Ident:       string(st.GodkjentAvNav.Av.Ident),
			Enhet:       string(st.GodkjentAvNav.Av.Enhet),
		})
		if err != nil {
			return fmt.Errorf("marshal godkjenning: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO samtykke (id, deltaker_id, gitt, gyldig_til, deltaker, godkjent_av_nav, opprettet, sist_endret)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			gitt = EXCLUDED.gitt,
			gyldig_til = EXCLUDED.gyldig_til,
			deltaker = EXCLUDED.deltaker,
			godkjent_av_nav = EXCLUDED.godkjent_av_nav,
			sist_endret = EXCLUDED.sist_endret
	`, uuid.UUID(st.ID), uuid.UUID(st.DeltakerID), st.Gitt, st.GyldigTil, snapshot, godkjenning, st.Opprettet, st.SistEndret)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("pending samtykke already exists for record %s: %w", st.DeltakerID, sentinel.ErrConflict)
		}
		return fmt.Errorf("upsert samtykke %s: %w", st.ID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, samtykkeID id.SamtykkeID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM samtykke WHERE id = $1`, uuid.UUID(samtykkeID)); err != nil {
		return fmt.Errorf("delete samtykke %s: %w", samtykkeID, err)
	}
	return nil
}

func scanSamtykke(row pgx.Row) (Samtykke, error) {
	var (
		st          Samtykke
		samtykkeID  uuid.UUID
		deltakerID  uuid.UUID
		snapshot    []byte
		godkjenning []byte
	)
	if err := row.Scan(&samtykkeID, &deltakerID, &st.Gitt, &st.GyldigTil, &snapshot, &godkjenning, &st.Opprettet, &st.SistEndret); err != nil {
		return Samtykke{}, err
	}
	st.ID = id.SamtykkeID(samtykkeID)
	st.DeltakerID = id.DeltakerID(deltakerID)

	var dto participant.SnapshotDTO
	if err := json.Unmarshal(snapshot, &dto); err != nil {
		return Samtykke{}, fmt.Errorf("unmarshal samtykke snapshot: %w", err)
	}
	d, err := participant.DecodeSnapshot(dto)
	if err != nil {
		return Samtykke{}, err
	}
	st.Deltaker = d

	if godkjenning != nil {
		var g godkjenningDTO
		if err := json.Unmarshal(godkjenning, &g); err != nil {
			return Samtykke{}, fmt.Errorf("unmarshal godkjenning: %w", err)
		}
		st.GodkjentAvNav = &GodkjenningAvNav{
			Begrunnelse: g.Begrunnelse,
			Av:          id.Actor{Ident: id.NavIdent(g.Ident), Enhet: id.Enhetsnummer(g.Enhet)},
		}
	}
	return st, nil
}

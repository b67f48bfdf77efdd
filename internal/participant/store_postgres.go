package participant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"deltaker/internal/status"
	id "deltaker/pkg/domain"
	"deltaker/pkg/platform/sentinel"
)

// PostgresStore persists the aggregate across three tables: the record row,
// the append-only status chain, and the append-only history. One Upsert is
// one transaction; the partial unique index on the status table backs up the
// single-current-status invariant at the database level.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, deltakerID id.DeltakerID) (Deltaker, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, person_id, gjennomforing_id, tiltakstype, innsatsgruppe,
		       startdato, sluttdato, dager_per_uke, deltakelsesprosent,
		       bakgrunnsinformasjon, innhold, kan_endres,
		       er_manuelt_delt_med_arrangor, kilde,
		       sist_endret_av, sist_endret_av_enhet, sist_endret, opprettet
		FROM deltaker WHERE id = $1
	`, uuid.UUID(deltakerID))

	d, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Deltaker{}, fmt.Errorf("record %s: %w", deltakerID, sentinel.ErrNotFound)
		}
		return Deltaker{}, fmt.Errorf("query record %s: %w", deltakerID, err)
	}

	if err := s.loadStatuses(ctx, &d); err != nil {
		return Deltaker{}, err
	}
	if err := s.loadHistorikk(ctx, &d); err != nil {
		return Deltaker{}, err
	}
	return d, nil
}

func (s *PostgresStore) ListByPerson(ctx context.Context, personID id.PersonID) ([]Deltaker, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, person_id, gjennomforing_id, tiltakstype, innsatsgruppe,
		       startdato, sluttdato, dager_per_uke, deltakelsesprosent,
		       bakgrunnsinformasjon, innhold, kan_endres,
		       er_manuelt_delt_med_arrangor, kilde,
		       sist_endret_av, sist_endret_av_enhet, sist_endret, opprettet
		FROM deltaker WHERE person_id = $1
		ORDER BY opprettet
	`, uuid.UUID(personID))
	if err != nil {
		return nil, fmt.Errorf("query records for person %s: %w", personID, err)
	}
	defer rows.Close()

	var out []Deltaker
	for rows.Next() {
		d, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := s.loadStatuses(ctx, &out[i]); err != nil {
			return nil, err
		}
		if err := s.loadHistorikk(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, d Deltaker) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	innhold, err := json.Marshal(encodeInnhold(d.Innhold))
	if err != nil {
		return fmt.Errorf("marshal innhold: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO deltaker (
			id, person_id, gjennomforing_id, tiltakstype, innsatsgruppe,
			startdato, sluttdato, dager_per_uke, deltakelsesprosent,
			bakgrunnsinformasjon, innhold, kan_endres,
			er_manuelt_delt_med_arrangor, kilde,
			sist_endret_av, sist_endret_av_enhet, sist_endret, opprettet
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (id) DO UPDATE SET
			person_id = EXCLUDED.person_id,
			gjennomforing_id = EXCLUDED.gjennomforing_id,
			tiltakstype = EXCLUDED.tiltakstype,
			innsatsgruppe = EXCLUDED.innsatsgruppe,
			startdato = EXCLUDED.startdato,
			sluttdato = EXCLUDED.sluttdato,
			dager_per_uke = EXCLUDED.dager_per_uke,
			deltakelsesprosent = EXCLUDED.deltakelsesprosent,
			bakgrunnsinformasjon = EXCLUDED.bakgrunnsinformasjon,
			innhold = EXCLUDED.innhold,
			kan_endres = EXCLUDED.kan_endres,
			er_manuelt_delt_med_arrangor = EXCLUDED.er_manuelt_delt_med_arrangor,
			kilde = EXCLUDED.kilde,
			sist_endret_av = EXCLUDED.sist_endret_av,
			sist_endret_av_enhet = EXCLUDED.sist_endret_av_enhet,
			sist_endret = EXCLUDED.sist_endret
	`,
		uuid.UUID(d.ID), uuid.UUID(d.PersonID), uuid.UUID(d.GjennomforingID), string(d.Tiltakstype), string(d.Innsatsgruppe),
		d.Startdato, d.Sluttdato, d.DagerPerUke, d.Deltakelsesprosent,
		d.Bakgrunnsinformasjon, innhold, d.KanEndres,
		d.ErManueltDeltMedArrangor, string(d.Kilde),
		string(d.SistEndretAv.Ident), string(d.SistEndretAv.Enhet), d.SistEndret, d.Opprettet,
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", d.ID, err)
	}

	// The closed chain first so the partial unique index never sees two
	// open statuses within the transaction.
	for _, st := range d.TidligereStatuser {
		if err = upsertStatus(ctx, tx, d.ID, st); err != nil {
			return err
		}
	}
	if err = upsertStatus(ctx, tx, d.ID, d.Status); err != nil {
		return err
	}

	if err = appendHistorikk(ctx, tx, d); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert for %s: %w", d.ID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, deltakerID id.DeltakerID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM deltaker WHERE id = $1`, uuid.UUID(deltakerID)); err != nil {
		return fmt.Errorf("delete record %s: %w", deltakerID, err)
	}
	return nil
}

func upsertStatus(ctx context.Context, tx pgx.Tx, deltakerID id.DeltakerID, st status.Status) error {
	var aarsakType *string
	aarsakTekst := ""
	if st.Aarsak != nil {
		t := string(st.Aarsak.Type)
		aarsakType = &t
		aarsakTekst = st.Aarsak.Beskrivelse
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO deltaker_status (id, deltaker_id, type, aarsak_type, aarsak_beskrivelse, gyldig_fra, gyldig_til, opprettet)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET gyldig_til = EXCLUDED.gyldig_til
	`, uuid.UUID(st.ID), uuid.UUID(deltakerID), string(st.Type), aarsakType, aarsakTekst, st.GyldigFra, st.GyldigTil, st.Opprettet)
	if err != nil {
		return fmt.Errorf("upsert status %s: %w", st.ID, err)
	}
	return nil
}

// appendHistorikk inserts only the tail beyond what is already stored.
// History rows are never updated or deleted; replaying the same aggregate is
// a no-op.
func appendHistorikk(ctx context.Context, tx pgx.Tx, d Deltaker) error {
	var stored int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM deltaker_historikk WHERE deltaker_id = $1`,
		uuid.UUID(d.ID),
	).Scan(&stored); err != nil {
		return fmt.Errorf("count history for %s: %w", d.ID, err)
	}
	if stored > len(d.Historikk) {
		return fmt.Errorf("record %s carries %d history entries but %d are stored; history never shrinks",
			d.ID, len(d.Historikk), stored)
	}
	for _, entry := range d.Historikk[stored:] {
		kind, data, err := EncodeHistorikkEntry(entry)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO deltaker_historikk (deltaker_id, type, data)
			VALUES ($1, $2, $3)
		`, uuid.UUID(d.ID), kind, data); err != nil {
			return fmt.Errorf("append history entry for %s: %w", d.ID, err)
		}
	}
	return nil
}

func scanRecord(row pgx.Row) (Deltaker, error) {
	var (
		d         Deltaker
		recordID  uuid.UUID
		personID  uuid.UUID
		programID uuid.UUID
		tiltak    string
		innsats   string
		innhold   []byte
		kilde     string
		ident     string
		enhet     string
	)
	err := row.Scan(
		&recordID, &personID, &programID, &tiltak, &innsats,
		&d.Startdato, &d.Sluttdato, &d.DagerPerUke, &d.Deltakelsesprosent,
		&d.Bakgrunnsinformasjon, &innhold, &d.KanEndres,
		&d.ErManueltDeltMedArrangor, &kilde,
		&ident, &enhet, &d.SistEndret, &d.Opprettet,
	)
	if err != nil {
		return Deltaker{}, err
	}
	d.ID = id.DeltakerID(recordID)
	d.PersonID = id.PersonID(personID)
	d.GjennomforingID = id.GjennomforingID(programID)
	d.Tiltakstype = id.Tiltakstype(tiltak)
	d.Innsatsgruppe = id.Innsatsgruppe(innsats)
	d.Kilde = id.Source(kilde)
	d.SistEndretAv = id.Actor{Ident: id.NavIdent(ident), Enhet: id.Enhetsnummer(enhet)}

	var innholdDTO InnholdDTO
	if err := json.Unmarshal(innhold, &innholdDTO); err != nil {
		return Deltaker{}, fmt.Errorf("unmarshal innhold: %w", err)
	}
	d.Innhold = decodeInnhold(innholdDTO)
	return d, nil
}

func (s *PostgresStore) loadStatuses(ctx context.Context, d *Deltaker) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, aarsak_type, aarsak_beskrivelse, gyldig_fra, gyldig_til, opprettet
		FROM deltaker_status WHERE deltaker_id = $1
		ORDER BY gyldig_fra, opprettet
	`, uuid.UUID(d.ID))
	if err != nil {
		return fmt.Errorf("query statuses for %s: %w", d.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			statusID    uuid.UUID
			statusType  string
			aarsakType  *string
			aarsakTekst string
			st          status.Status
		)
		if err := rows.Scan(&statusID, &statusType, &aarsakType, &aarsakTekst, &st.GyldigFra, &st.GyldigTil, &st.Opprettet); err != nil {
			return fmt.Errorf("scan status: %w", err)
		}
		st.ID = id.StatusID(statusID)
		st.Type = status.Type(statusType)
		if aarsakType != nil {
			st.Aarsak = &status.Aarsak{Type: status.AarsakType(*aarsakType), Beskrivelse: aarsakTekst}
		}
		if st.Current() {
			d.Status = st
		} else {
			d.TidligereStatuser = append(d.TidligereStatuser, st)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) loadHistorikk(ctx context.Context, d *Deltaker) error {
	rows, err := s.pool.Query(ctx, `
		SELECT type, data FROM deltaker_historikk
		WHERE deltaker_id = $1 ORDER BY seq
	`, uuid.UUID(d.ID))
	if err != nil {
		return fmt.Errorf("query history for %s: %w", d.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind string
			data []byte
		)
		if err := rows.Scan(&kind, &data); err != nil {
			return fmt.Errorf("scan history row: %w", err)
		}
		entry, err := DecodeHistorikkEntry(kind, data)
		if err != nil {
			return err
		}
		d.Historikk = append(d.Historikk, entry)
	}
	return rows.Err()
}

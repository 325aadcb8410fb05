package plantacao

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 3 * time.Second

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const plantacaoColumns = `id, compra_id, insumo_id, insumo_nome, quantidade_plantada, data_plantio,
	cooperado_uid, cooperado_nome, fazenda_id, colhida, data_colheita, criado_em, atualizado_em`

func scanPlantacao(row pgx.Row) (*Plantacao, error) {
	var p Plantacao
	err := row.Scan(&p.ID, &p.CompraID, &p.InsumoID, &p.InsumoNome, &p.QuantidadePlantada, &p.DataPlantio,
		&p.CooperadoUID, &p.CooperadoNome, &p.FazendaID, &p.Colhida, &p.DataColheita, &p.CriadoEm, &p.AtualizadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) Create(ctx context.Context, in RegistrarInput) (*Plantacao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanPlantacao(r.pool.QueryRow(ctx, `
		INSERT INTO plantacoes (id, compra_id, insumo_id, insumo_nome, quantidade_plantada, data_plantio,
			cooperado_uid, cooperado_nome, fazenda_id, colhida)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false)
		RETURNING `+plantacaoColumns,
		uuid.New(), in.CompraID, in.InsumoID, in.InsumoNome, in.QuantidadePlantada, in.DataPlantio,
		in.CooperadoUID, in.CooperadoNome, in.FazendaID))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Plantacao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanPlantacao(r.pool.QueryRow(ctx, `SELECT `+plantacaoColumns+` FROM plantacoes WHERE id = $1`, id))
}

// ListByFazenda devolve as plantações da fazenda, mais recentes primeiro.
func (r *Repository) ListByFazenda(ctx context.Context, fazendaID uuid.UUID) ([]Plantacao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+plantacaoColumns+`
		FROM plantacoes
		WHERE fazenda_id = $1
		ORDER BY data_plantio DESC
	`, fazendaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plantacoes := []Plantacao{}
	for rows.Next() {
		p, err := scanPlantacao(rows)
		if err != nil {
			return nil, err
		}
		plantacoes = append(plantacoes, *p)
	}
	return plantacoes, rows.Err()
}

// MarcarColhida só vira plantações ainda não colhidas.
func (r *Repository) MarcarColhida(ctx context.Context, id uuid.UUID, data time.Time) (*Plantacao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	p, err := scanPlantacao(r.pool.QueryRow(ctx, `
		UPDATE plantacoes
		SET colhida = true, data_colheita = $2, atualizado_em = now()
		WHERE id = $1 AND NOT colhida
		RETURNING `+plantacaoColumns, id, data))
	if !errors.Is(err, ErrNotFound) {
		return p, err
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrJaColhida
}

// DesmarcarColhida existe apenas para compensar uma colheita que falhou adiante.
func (r *Repository) DesmarcarColhida(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE plantacoes
		SET colhida = false, data_colheita = NULL, atualizado_em = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

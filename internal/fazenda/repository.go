package fazenda

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coopagro/gestao/internal/db"
)

const dbTimeout = 3 * time.Second

// Repository provê acesso ao cadastro de fazendas.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório de fazendas.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const fazendaColumns = `id, nome, cnpj, endereco, criado_em, atualizado_em`

func scanFazenda(row pgx.Row) (*Fazenda, error) {
	var f Fazenda
	if err := row.Scan(&f.ID, &f.Nome, &f.CNPJ, &f.Endereco, &f.CriadoEm, &f.AtualizadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// Create grava uma nova fazenda.
func (r *Repository) Create(ctx context.Context, input CriarInput) (*Fazenda, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	f, err := scanFazenda(r.pool.QueryRow(ctx, `
		INSERT INTO fazendas (id, nome, cnpj, endereco)
		VALUES ($1, $2, $3, $4)
		RETURNING `+fazendaColumns, uuid.New(), input.Nome, input.CNPJ, input.Endereco))
	if db.IsUniqueViolation(err, "fazendas_cnpj_key") {
		return nil, ErrCNPJEmUso
	}
	return f, err
}

// Update aplica o merge e sempre carimba atualizado_em.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, input AtualizarInput) (*Fazenda, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	f, err := scanFazenda(r.pool.QueryRow(ctx, `
		UPDATE fazendas
		SET nome = COALESCE($2, nome),
		    cnpj = COALESCE($3, cnpj),
		    endereco = COALESCE($4, endereco),
		    atualizado_em = now()
		WHERE id = $1
		RETURNING `+fazendaColumns, id, input.Nome, input.CNPJ, input.Endereco))
	if db.IsUniqueViolation(err, "fazendas_cnpj_key") {
		return nil, ErrCNPJEmUso
	}
	return f, err
}

// Delete remove a fazenda; perfis vinculados ficam sem fazenda.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM fazendas WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID busca fazenda pelo identificador.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Fazenda, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanFazenda(r.pool.QueryRow(ctx, `SELECT `+fazendaColumns+` FROM fazendas WHERE id = $1`, id))
}

// List devolve todas as fazendas ordenadas por nome.
func (r *Repository) List(ctx context.Context) ([]Fazenda, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT `+fazendaColumns+` FROM fazendas ORDER BY nome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fazendas := []Fazenda{}
	for rows.Next() {
		f, err := scanFazenda(rows)
		if err != nil {
			return nil, err
		}
		fazendas = append(fazendas, *f)
	}
	return fazendas, rows.Err()
}

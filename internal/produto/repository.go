package produto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const dbTimeout = 3 * time.Second

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const produtoColumns = `id, nome, descricao, tipo, unidade_medida, preco_venda::text, data_producao,
	produtor_id, produtor_nome, insumo_id, criado_em, atualizado_em`

func scanProduto(row pgx.Row) (*Produto, error) {
	var (
		p     Produto
		preco string
	)
	err := row.Scan(&p.ID, &p.Nome, &p.Descricao, &p.Tipo, &p.UnidadeMedida, &preco, &p.DataProducao,
		&p.ProdutorID, &p.ProdutorNome, &p.InsumoID, &p.CriadoEm, &p.AtualizadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.PrecoVenda, err = decimal.NewFromString(preco); err != nil {
		return nil, fmt.Errorf("preco_venda: %w", err)
	}
	return &p, nil
}

func (r *Repository) Create(ctx context.Context, input CriarInput) (*Produto, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanProduto(r.pool.QueryRow(ctx, `
		INSERT INTO produtos (id, nome, descricao, tipo, unidade_medida, preco_venda, data_producao, produtor_id, produtor_nome, insumo_id)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10)
		RETURNING `+produtoColumns,
		uuid.New(), input.Nome, input.Descricao, input.Tipo, input.UnidadeMedida, input.PrecoVenda.String(),
		input.DataProducao, input.ProdutorID, input.ProdutorNome, input.InsumoID))
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, input AtualizarInput) (*Produto, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var preco *string
	if input.PrecoVenda != nil {
		v := input.PrecoVenda.String()
		preco = &v
	}
	return scanProduto(r.pool.QueryRow(ctx, `
		UPDATE produtos
		SET nome = COALESCE($2, nome),
		    descricao = COALESCE($3, descricao),
		    tipo = COALESCE($4, tipo),
		    unidade_medida = COALESCE($5, unidade_medida),
		    preco_venda = COALESCE($6::numeric, preco_venda),
		    data_producao = COALESCE($7, data_producao),
		    insumo_id = COALESCE($8, insumo_id),
		    atualizado_em = now()
		WHERE id = $1
		RETURNING `+produtoColumns,
		id, input.Nome, input.Descricao, input.Tipo, input.UnidadeMedida, preco, input.DataProducao, input.InsumoID))
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM produtos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Produto, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanProduto(r.pool.QueryRow(ctx, `SELECT `+produtoColumns+` FROM produtos WHERE id = $1`, id))
}

// List devolve os produtos, opcionalmente apenas os originados de um insumo.
func (r *Repository) List(ctx context.Context, insumoID *uuid.UUID) ([]Produto, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+produtoColumns+`
		FROM produtos
		WHERE $1::uuid IS NULL OR insumo_id = $1
		ORDER BY criado_em DESC
	`, insumoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	produtos := []Produto{}
	for rows.Next() {
		p, err := scanProduto(rows)
		if err != nil {
			return nil, err
		}
		produtos = append(produtos, *p)
	}
	return produtos, rows.Err()
}

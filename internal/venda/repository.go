package venda

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

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const vendaColumns = `id, produto_nome, quantidade, regiao, local_id, fazenda_id, fazenda_nome, data_venda, chave_idempotencia, criado_em`

// Create grava a venda e devolve a linha persistida.
func (r *Repository) Create(ctx context.Context, v Venda) (*Venda, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out, err := scanVenda(r.pool.QueryRow(ctx, `
		INSERT INTO vendas (id, produto_nome, quantidade, regiao, local_id, fazenda_id, fazenda_nome, data_venda, chave_idempotencia)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+vendaColumns,
		v.ID, v.ProdutoNome, v.Quantidade, string(v.Regiao), v.LocalID, v.FazendaID, v.FazendaNome, v.DataVenda, v.ChaveIdempotencia))
	if err != nil {
		if db.IsUniqueViolation(err, "vendas_fazenda_chave_key") {
			return nil, ErrChaveEmUso
		}
		return nil, err
	}
	return out, nil
}

// GetByChave busca a venda da fazenda gravada com a chave de idempotência.
func (r *Repository) GetByChave(ctx context.Context, fazendaID uuid.UUID, chave string) (*Venda, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanVenda(r.pool.QueryRow(ctx, `
		SELECT `+vendaColumns+`
		FROM vendas
		WHERE fazenda_id = $1 AND chave_idempotencia = $2
	`, fazendaID, chave))
}

func (r *Repository) ListByFazenda(ctx context.Context, fazendaID uuid.UUID) ([]Venda, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+vendaColumns+`
		FROM vendas
		WHERE fazenda_id = $1
		ORDER BY data_venda DESC
	`, fazendaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendas []Venda
	for rows.Next() {
		v, err := scanVenda(rows)
		if err != nil {
			return nil, err
		}
		vendas = append(vendas, *v)
	}
	return vendas, rows.Err()
}

func scanVenda(row pgx.Row) (*Venda, error) {
	var (
		v      Venda
		regiao string
	)
	err := row.Scan(&v.ID, &v.ProdutoNome, &v.Quantidade, &regiao, &v.LocalID, &v.FazendaID, &v.FazendaNome,
		&v.DataVenda, &v.ChaveIdempotencia, &v.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	v.Regiao = Regiao(regiao)
	return &v, nil
}

package insumo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const dbTimeout = 3 * time.Second

// Repository provê acesso a insumos e compras.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const insumoColumns = `id, nome, tipo, unidade_medida, valor_por_unidade::text, criado_em, atualizado_em`

func scanInsumo(row pgx.Row) (*Insumo, error) {
	var (
		i     Insumo
		valor string
	)
	if err := row.Scan(&i.ID, &i.Nome, &i.Tipo, &i.UnidadeMedida, &valor, &i.CriadoEm, &i.AtualizadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	v, err := decimal.NewFromString(valor)
	if err != nil {
		return nil, fmt.Errorf("valor_por_unidade: %w", err)
	}
	i.ValorPorUnidade = v
	return &i, nil
}

// CreateInsumo grava um novo insumo.
func (r *Repository) CreateInsumo(ctx context.Context, input CriarInsumoInput) (*Insumo, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanInsumo(r.pool.QueryRow(ctx, `
		INSERT INTO insumos (id, nome, tipo, unidade_medida, valor_por_unidade)
		VALUES ($1, $2, $3, $4, $5::numeric)
		RETURNING `+insumoColumns,
		uuid.New(), input.Nome, input.Tipo, input.UnidadeMedida, input.ValorPorUnidade.String()))
}

// UpdateInsumo aplica merge parcial e carimba atualizado_em.
func (r *Repository) UpdateInsumo(ctx context.Context, id uuid.UUID, input AtualizarInsumoInput) (*Insumo, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var valor *string
	if input.ValorPorUnidade != nil {
		v := input.ValorPorUnidade.String()
		valor = &v
	}
	return scanInsumo(r.pool.QueryRow(ctx, `
		UPDATE insumos
		SET nome = COALESCE($2, nome),
		    tipo = COALESCE($3, tipo),
		    unidade_medida = COALESCE($4, unidade_medida),
		    valor_por_unidade = COALESCE($5::numeric, valor_por_unidade),
		    atualizado_em = now()
		WHERE id = $1
		RETURNING `+insumoColumns,
		id, input.Nome, input.Tipo, input.UnidadeMedida, valor))
}

// DeleteInsumo remove o insumo do catálogo.
func (r *Repository) DeleteInsumo(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM insumos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetInsumo busca insumo pelo identificador.
func (r *Repository) GetInsumo(ctx context.Context, id uuid.UUID) (*Insumo, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanInsumo(r.pool.QueryRow(ctx, `SELECT `+insumoColumns+` FROM insumos WHERE id = $1`, id))
}

// ListInsumos devolve o catálogo ordenado por nome.
func (r *Repository) ListInsumos(ctx context.Context) ([]Insumo, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT `+insumoColumns+` FROM insumos ORDER BY nome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	insumos := []Insumo{}
	for rows.Next() {
		i, err := scanInsumo(rows)
		if err != nil {
			return nil, err
		}
		insumos = append(insumos, *i)
	}
	return insumos, rows.Err()
}

const compraColumns = `id, itens, valor_total::text, data_compra, status, versao, criado_em, atualizado_em`

func scanCompra(row pgx.Row) (*Compra, error) {
	var (
		c     Compra
		itens []byte
		total string
	)
	if err := row.Scan(&c.ID, &itens, &total, &c.DataCompra, &c.Status, &c.Versao, &c.CriadoEm, &c.AtualizadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompraNaoEncontrada
		}
		return nil, err
	}
	if err := json.Unmarshal(itens, &c.Itens); err != nil {
		return nil, fmt.Errorf("itens da compra: %w", err)
	}
	v, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("valor_total: %w", err)
	}
	c.ValorTotal = v
	return &c, nil
}

// CreateCompra grava a compra com versão inicial 1.
func (r *Repository) CreateCompra(ctx context.Context, c Compra) (*Compra, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	itens, err := json.Marshal(c.Itens)
	if err != nil {
		return nil, err
	}
	return scanCompra(r.pool.QueryRow(ctx, `
		INSERT INTO compras (id, itens, valor_total, data_compra, status)
		VALUES ($1, $2::jsonb, $3::numeric, $4, $5)
		RETURNING `+compraColumns,
		c.ID, string(itens), c.ValorTotal.String(), c.DataCompra, c.Status))
}

// GetCompra busca compra pelo identificador.
func (r *Repository) GetCompra(ctx context.Context, id uuid.UUID) (*Compra, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanCompra(r.pool.QueryRow(ctx, `SELECT `+compraColumns+` FROM compras WHERE id = $1`, id))
}

// ListCompras lista compras, filtrando pelo conteúdo dos itens quando pedido.
func (r *Repository) ListCompras(ctx context.Context, filtro FiltroCompras) ([]Compra, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `SELECT ` + compraColumns + ` FROM compras`
	var args []any
	switch {
	case filtro.FazendaID != nil:
		query += ` WHERE itens @> jsonb_build_array(jsonb_build_object('fazendaId', $1::text))`
		args = append(args, filtro.FazendaID.String())
	case filtro.CooperadoUID != nil:
		query += ` WHERE itens @> jsonb_build_array(jsonb_build_object('cooperadoUid', $1::text))`
		args = append(args, filtro.CooperadoUID.String())
	}
	query += ` ORDER BY data_compra DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	compras := []Compra{}
	for rows.Next() {
		c, err := scanCompra(rows)
		if err != nil {
			return nil, err
		}
		compras = append(compras, *c)
	}
	return compras, rows.Err()
}

// UpdateStatus troca o status informativo da compra.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status StatusCompra) (*Compra, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanCompra(r.pool.QueryRow(ctx, `
		UPDATE compras
		SET status = $2, atualizado_em = now()
		WHERE id = $1
		RETURNING `+compraColumns, id, status))
}

// AtualizarItens regrava o array de itens somente se a versão lida ainda for a atual.
func (r *Repository) AtualizarItens(ctx context.Context, id uuid.UUID, versao int, itens []ItemCompra) (*Compra, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	raw, err := json.Marshal(itens)
	if err != nil {
		return nil, err
	}
	c, err := scanCompra(r.pool.QueryRow(ctx, `
		UPDATE compras
		SET itens = $3::jsonb, versao = versao + 1, atualizado_em = now()
		WHERE id = $1 AND versao = $2
		RETURNING `+compraColumns, id, versao, string(raw)))
	if errors.Is(err, ErrCompraNaoEncontrada) {
		return nil, ErrVersaoDesatualizada
	}
	return c, err
}

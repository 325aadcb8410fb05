package colheita

import (
	"context"
	"time"

	"github.com/google/uuid"
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

const colhidoColumns = `id, plantacao_id, insumo_id, produto_nome, unidade_medida, quantidade, local_id,
	local_nome, ocupacao_id, fazenda_id, fazenda_nome, data_colheita, criado_em`

// Create acrescenta o produto colhido; cada plantação rende no máximo um registro.
func (r *Repository) Create(ctx context.Context, p ProdutoColhido) (*ProdutoColhido, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := r.pool.QueryRow(ctx, `
		INSERT INTO produtos_colhidos (id, plantacao_id, insumo_id, produto_nome, unidade_medida, quantidade,
			local_id, local_nome, ocupacao_id, fazenda_id, fazenda_nome, data_colheita)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING criado_em
	`, p.ID, p.PlantacaoID, p.InsumoID, p.ProdutoNome, p.UnidadeMedida, p.Quantidade,
		p.LocalID, p.LocalNome, p.OcupacaoID, p.FazendaID, p.FazendaNome, p.DataColheita).Scan(&p.CriadoEm)
	if err != nil {
		if db.IsUniqueViolation(err, "produtos_colhidos_plantacao_key") {
			return nil, ErrJaRegistrada
		}
		return nil, err
	}
	return &p, nil
}

// ListByFazenda devolve as colheitas da fazenda, mais recentes primeiro.
func (r *Repository) ListByFazenda(ctx context.Context, fazendaID uuid.UUID) ([]ProdutoColhido, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+colhidoColumns+`
		FROM produtos_colhidos
		WHERE fazenda_id = $1
		ORDER BY data_colheita DESC
	`, fazendaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colhidos := []ProdutoColhido{}
	for rows.Next() {
		var p ProdutoColhido
		if err := rows.Scan(&p.ID, &p.PlantacaoID, &p.InsumoID, &p.ProdutoNome, &p.UnidadeMedida, &p.Quantidade, &p.LocalID,
			&p.LocalNome, &p.OcupacaoID, &p.FazendaID, &p.FazendaNome, &p.DataColheita, &p.CriadoEm); err != nil {
			return nil, err
		}
		colhidos = append(colhidos, p)
	}
	return colhidos, rows.Err()
}

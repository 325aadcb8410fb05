package armazenamento

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

// Repository concentra as escritas de capacidade; toda alteração de
// capacidade_utilizada é um UPDATE condicional dentro de transação.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const localColumns = `id, nome, tipo_armazenamento, capacidade_maxima, capacidade_utilizada,
	fazenda_id, fazenda_nome, produto_nome, criado_em, atualizado_em`

func scanLocal(row pgx.Row) (*LocalArmazenamento, error) {
	var (
		l                        LocalArmazenamento
		fazendaNome, produtoNome *string
	)
	err := row.Scan(&l.ID, &l.Nome, &l.TipoArmazenamento, &l.CapacidadeMaxima, &l.CapacidadeUtilizada,
		&l.FazendaID, &fazendaNome, &produtoNome, &l.CriadoEm, &l.AtualizadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocalNaoEncontrado
		}
		return nil, err
	}
	if fazendaNome != nil {
		l.FazendaNome = *fazendaNome
	}
	if produtoNome != nil {
		l.ProdutoNome = *produtoNome
	}
	return &l, nil
}

func collectLocais(rows pgx.Rows) ([]LocalArmazenamento, error) {
	defer rows.Close()
	locais := []LocalArmazenamento{}
	for rows.Next() {
		l, err := scanLocal(rows)
		if err != nil {
			return nil, err
		}
		locais = append(locais, *l)
	}
	return locais, rows.Err()
}

func getLocal(ctx context.Context, q db.DBTX, id uuid.UUID, lock bool) (*LocalArmazenamento, error) {
	query := `SELECT ` + localColumns + ` FROM locais_armazenamento WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	return scanLocal(q.QueryRow(ctx, query, id))
}

// Create grava o local com capacidade utilizada zero.
func (r *Repository) Create(ctx context.Context, input RegistrarLocalInput) (*LocalArmazenamento, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanLocal(r.pool.QueryRow(ctx, `
		INSERT INTO locais_armazenamento (id, nome, tipo_armazenamento, capacidade_maxima, capacidade_utilizada)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING `+localColumns, uuid.New(), input.Nome, input.TipoArmazenamento, input.CapacidadeMaxima))
}

// Update aplica o merge sem deixar a capacidade máxima abaixo do uso atual
// e sem trocar o tipo de um local com carga.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, input AtualizarLocalInput) (*LocalArmazenamento, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	l, err := scanLocal(r.pool.QueryRow(ctx, `
		UPDATE locais_armazenamento
		SET nome = COALESCE($2, nome),
		    tipo_armazenamento = COALESCE($3, tipo_armazenamento),
		    capacidade_maxima = COALESCE($4, capacidade_maxima),
		    atualizado_em = now()
		WHERE id = $1
		  AND ($4::float8 IS NULL OR $4::float8 >= capacidade_utilizada)
		  AND ($3::text IS NULL OR $3::text = tipo_armazenamento OR capacidade_utilizada = 0)
		RETURNING `+localColumns, id, input.Nome, input.TipoArmazenamento, input.CapacidadeMaxima))
	if !errors.Is(err, ErrLocalNaoEncontrado) {
		return l, err
	}

	atual, err := getLocal(ctx, r.pool, id, false)
	if err != nil {
		return nil, err
	}
	if input.CapacidadeMaxima != nil && *input.CapacidadeMaxima < atual.CapacidadeUtilizada {
		return nil, ErrCapacidadeAbaixoDoUso
	}
	return nil, ErrLocalEmUso
}

// Delete só remove locais vazios.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM locais_armazenamento WHERE id = $1 AND capacidade_utilizada = 0`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err, "") {
			return ErrLocalEmUso
		}
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := getLocal(ctx, r.pool, id, false); err != nil {
		return err
	}
	return ErrLocalEmUso
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*LocalArmazenamento, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return getLocal(ctx, r.pool, id, false)
}

// List devolve os locais, opcionalmente só os vinculados à fazenda.
func (r *Repository) List(ctx context.Context, fazendaID *uuid.UUID) ([]LocalArmazenamento, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+localColumns+`
		FROM locais_armazenamento
		WHERE $1::uuid IS NULL OR fazenda_id = $1
		ORDER BY nome
	`, fazendaID)
	if err != nil {
		return nil, err
	}
	return collectLocais(rows)
}

// ListEmUso devolve os locais com carga da fazenda.
func (r *Repository) ListEmUso(ctx context.Context, fazendaID uuid.UUID) ([]LocalArmazenamento, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+localColumns+`
		FROM locais_armazenamento
		WHERE fazenda_id = $1 AND capacidade_utilizada > 0
		ORDER BY nome
	`, fazendaID)
	if err != nil {
		return nil, err
	}
	return collectLocais(rows)
}

// ListCompativeis devolve locais do mesmo tipo, com espaço e livres ou já da fazenda e produto.
func (r *Repository) ListCompativeis(ctx context.Context, f FiltroCompativeis) ([]LocalArmazenamento, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+localColumns+`
		FROM locais_armazenamento
		WHERE tipo_armazenamento = $1
		  AND capacidade_utilizada < capacidade_maxima
		  AND (capacidade_utilizada = 0 OR fazenda_id IS NULL
		       OR (fazenda_id = $2 AND (produto_nome IS NULL OR produto_nome = '' OR $3 = '' OR produto_nome = $3)))
		ORDER BY capacidade_maxima - capacidade_utilizada DESC, nome
	`, f.Tipo, f.FazendaID, f.ProdutoNome)
	if err != nil {
		return nil, err
	}
	return collectLocais(rows)
}

// RegistrarEntrada soma a carga e grava a ocupação na mesma transação.
// O UPDATE só casa quando o local comporta a carga; senão nada muda.
func (r *Repository) RegistrarEntrada(ctx context.Context, localID uuid.UUID, c Carga) (*Entrada, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var entrada Entrada
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		l, err := scanLocal(tx.QueryRow(ctx, `
			UPDATE locais_armazenamento
			SET capacidade_utilizada = capacidade_utilizada + $2,
			    fazenda_id = $3,
			    fazenda_nome = NULLIF($4, ''),
			    produto_nome = NULLIF($5, ''),
			    atualizado_em = now()
			WHERE id = $1
			  AND tipo_armazenamento = $6
			  AND capacidade_utilizada + $2 <= capacidade_maxima
			  AND (capacidade_utilizada = 0 OR fazenda_id IS NULL
			       OR (fazenda_id = $3 AND (produto_nome IS NULL OR produto_nome = '' OR produto_nome = $5)))
			RETURNING `+localColumns,
			localID, c.Quantidade, c.FazendaID, c.FazendaNome, c.ProdutoNome, c.UnidadeMedida))
		if errors.Is(err, ErrLocalNaoEncontrado) {
			return diagnosticarEntrada(ctx, tx, localID, c)
		}
		if err != nil {
			return err
		}

		o := Ocupacao{
			ID:          uuid.New(),
			LocalID:     localID,
			FazendaID:   c.FazendaID,
			ProdutoNome: c.ProdutoNome,
			InsumoID:    c.InsumoID,
			Quantidade:  c.Quantidade,
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO armazenamento_ocupacoes (id, local_id, fazenda_id, produto_nome, insumo_id, quantidade)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING data_armazenamento
		`, o.ID, o.LocalID, o.FazendaID, o.ProdutoNome, o.InsumoID, o.Quantidade).Scan(&o.DataArmazenamento); err != nil {
			return err
		}

		entrada = Entrada{Local: *l, Ocupacao: o}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entrada, nil
}

func diagnosticarEntrada(ctx context.Context, tx pgx.Tx, localID uuid.UUID, c Carga) error {
	l, err := getLocal(ctx, tx, localID, false)
	if err != nil {
		return err
	}
	if err := l.Aceita(c); err != nil {
		return err
	}
	return ErrCapacidadeExcedida
}

// EstornarEntrada desfaz uma entrada removendo a ocupação e devolvendo o espaço.
func (r *Repository) EstornarEntrada(ctx context.Context, ocupacaoID uuid.UUID) (*LocalArmazenamento, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var local *LocalArmazenamento
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var (
			localID    uuid.UUID
			quantidade float64
		)
		err := tx.QueryRow(ctx, `
			DELETE FROM armazenamento_ocupacoes WHERE id = $1
			RETURNING local_id, quantidade
		`, ocupacaoID).Scan(&localID, &quantidade)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOcupacaoNaoEncontrada
		}
		if err != nil {
			return err
		}

		local, err = scanLocal(tx.QueryRow(ctx, `
			UPDATE locais_armazenamento
			SET capacidade_utilizada = GREATEST(0, capacidade_utilizada - $2),
			    fazenda_id = CASE WHEN capacidade_utilizada - $2 <= 0 THEN NULL ELSE fazenda_id END,
			    fazenda_nome = CASE WHEN capacidade_utilizada - $2 <= 0 THEN NULL ELSE fazenda_nome END,
			    produto_nome = CASE WHEN capacidade_utilizada - $2 <= 0 THEN NULL ELSE produto_nome END,
			    atualizado_em = now()
			WHERE id = $1
			RETURNING `+localColumns, localID, quantidade))
		return err
	})
	if err != nil {
		return nil, err
	}
	return local, nil
}

// RegistrarSaida retira a quantidade travando a linha do local; ao zerar limpa o vínculo.
func (r *Repository) RegistrarSaida(ctx context.Context, localID, fazendaID uuid.UUID, quantidade float64) (*Saida, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var saida Saida
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		antes, err := getLocal(ctx, tx, localID, true)
		if err != nil {
			return err
		}
		if antes.FazendaID != nil && *antes.FazendaID != fazendaID {
			return ErrLocalOcupado
		}

		novo, vinculo := calcularSaida(*antes, quantidade)
		depois, err := scanLocal(tx.QueryRow(ctx, `
			UPDATE locais_armazenamento
			SET capacidade_utilizada = $2,
			    fazenda_id = $3,
			    fazenda_nome = NULLIF($4, ''),
			    produto_nome = NULLIF($5, ''),
			    atualizado_em = now()
			WHERE id = $1
			RETURNING `+localColumns, localID, novo, vinculo.FazendaID, vinculo.FazendaNome, vinculo.ProdutoNome))
		if err != nil {
			return err
		}

		saida = Saida{
			Antes:    vinculoDe(*antes),
			Depois:   *depois,
			Liberado: antes.CapacidadeUtilizada > 0 && depois.CapacidadeUtilizada == 0,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saida, nil
}

// calcularSaida aplica max(0, usado - q) e limpa o vínculo quando zera.
func calcularSaida(l LocalArmazenamento, quantidade float64) (float64, Vinculo) {
	novo := l.CapacidadeUtilizada - quantidade
	if novo <= 0 {
		return 0, Vinculo{}
	}
	v := vinculoDe(l)
	v.CapacidadeUtilizada = novo
	return novo, v
}

// RestaurarSaida devolve ao local o que a saída retirou, recompondo o vínculo.
// Falha se outra fazenda ocupou o local nesse meio tempo.
func (r *Repository) RestaurarSaida(ctx context.Context, localID uuid.UUID, s Saida) (*LocalArmazenamento, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	l, err := scanLocal(r.pool.QueryRow(ctx, `
		UPDATE locais_armazenamento
		SET capacidade_utilizada = capacidade_utilizada + $2,
		    fazenda_id = COALESCE(fazenda_id, $3),
		    fazenda_nome = COALESCE(fazenda_nome, NULLIF($4, '')),
		    produto_nome = COALESCE(produto_nome, NULLIF($5, '')),
		    atualizado_em = now()
		WHERE id = $1
		  AND capacidade_utilizada + $2 <= capacidade_maxima
		  AND (fazenda_id IS NULL OR $3::uuid IS NULL OR fazenda_id = $3)
		RETURNING `+localColumns, localID, s.Retirado(), s.Antes.FazendaID, s.Antes.FazendaNome, s.Antes.ProdutoNome))
	if !errors.Is(err, ErrLocalNaoEncontrado) {
		return l, err
	}

	atual, err := getLocal(ctx, r.pool, localID, false)
	if err != nil {
		return nil, err
	}
	if atual.CapacidadeUtilizada+s.Retirado() > atual.CapacidadeMaxima {
		return nil, ErrCapacidadeExcedida
	}
	return nil, ErrLocalOcupado
}

// Ocupacoes lista as entradas do local, mais recentes primeiro.
func (r *Repository) Ocupacoes(ctx context.Context, localID uuid.UUID) ([]Ocupacao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT id, local_id, fazenda_id, produto_nome, insumo_id, quantidade, data_armazenamento
		FROM armazenamento_ocupacoes
		WHERE local_id = $1
		ORDER BY data_armazenamento DESC
	`, localID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ocupacoes := []Ocupacao{}
	for rows.Next() {
		var o Ocupacao
		if err := rows.Scan(&o.ID, &o.LocalID, &o.FazendaID, &o.ProdutoNome, &o.InsumoID, &o.Quantidade, &o.DataArmazenamento); err != nil {
			return nil, err
		}
		ocupacoes = append(ocupacoes, o)
	}
	return ocupacoes, rows.Err()
}

package notificacao

import (
	"context"
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

const colunas = `id, usuario_id, tipo, titulo, mensagem, dados, lida, criado_em`

// CreateBatch grava todas as notificações em uma única ida ao banco.
func (r *Repository) CreateBatch(ctx context.Context, ns []Notificacao) error {
	if len(ns) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, n := range ns {
		batch.Queue(`
			INSERT INTO notificacoes (id, usuario_id, tipo, titulo, mensagem, dados, lida, criado_em)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, n.ID, n.UsuarioID, string(n.Tipo), n.Titulo, n.Mensagem, n.Dados, n.Lida, n.CriadoEm)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *Repository) ListByUsuario(ctx context.Context, uid uuid.UUID, limite int) ([]Notificacao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+colunas+`
		FROM notificacoes
		WHERE usuario_id = $1
		ORDER BY criado_em DESC
		LIMIT $2
	`, uid, limite)
	if err != nil {
		return nil, err
	}
	return scanNotificacoes(rows)
}

func (r *Repository) ListNaoLidas(ctx context.Context, uid uuid.UUID) ([]Notificacao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+colunas+`
		FROM notificacoes
		WHERE usuario_id = $1 AND NOT lida
		ORDER BY criado_em DESC
	`, uid)
	if err != nil {
		return nil, err
	}
	return scanNotificacoes(rows)
}

// MarcarComoLida só altera notificações do próprio usuário.
func (r *Repository) MarcarComoLida(ctx context.Context, uid, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `UPDATE notificacoes SET lida = true WHERE id = $1 AND usuario_id = $2`, id, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) MarcarTodasComoLidas(ctx context.Context, uid uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `UPDATE notificacoes SET lida = true WHERE usuario_id = $1 AND NOT lida`, uid)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanNotificacoes(rows pgx.Rows) ([]Notificacao, error) {
	defer rows.Close()

	var out []Notificacao
	for rows.Next() {
		var (
			n    Notificacao
			tipo string
		)
		if err := rows.Scan(&n.ID, &n.UsuarioID, &tipo, &n.Titulo, &n.Mensagem, &n.Dados, &n.Lida, &n.CriadoEm); err != nil {
			return nil, err
		}
		n.Tipo = Tipo(tipo)
		out = append(out, n)
	}
	return out, rows.Err()
}

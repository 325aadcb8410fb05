package repo

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

// Queries concentra o acesso a usuários e refresh tokens.
type Queries struct {
	db db.DBTX
}

// New cria Queries sobre o pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{db: pool}
}

// WithTx devolve Queries amarrado a uma transação aberta.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const usuarioColumns = `
	u.id, u.email, u.nome, u.sobrenome, u.senha_hash, u.provedor, u.provedor_id, u.foto_url,
	u.cpf, u.data_nascimento, u.papel, u.fazenda_id, f.nome, u.ativo, u.criado_em, u.atualizado_em
`

func scanUsuario(row pgx.Row) (Usuario, error) {
	var u Usuario
	err := row.Scan(
		&u.ID, &u.Email, &u.Nome, &u.Sobrenome, &u.SenhaHash, &u.Provedor, &u.ProvedorID, &u.FotoURL,
		&u.CPF, &u.DataNascimento, &u.Papel, &u.FazendaID, &u.FazendaNome, &u.Ativo, &u.CriadoEm, &u.AtualizadoEm,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return u, nil
}

// GetUsuarioByEmail busca usuário pelo email normalizado.
func (q *Queries) GetUsuarioByEmail(ctx context.Context, email string) (Usuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanUsuario(q.db.QueryRow(ctx, `
		SELECT `+usuarioColumns+`
		FROM usuarios u
		LEFT JOIN fazendas f ON f.id = u.fazenda_id
		WHERE u.email = lower($1)
	`, email))
}

// GetUsuarioByID busca usuário pelo identificador.
func (q *Queries) GetUsuarioByID(ctx context.Context, id uuid.UUID) (Usuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return scanUsuario(q.db.QueryRow(ctx, `
		SELECT `+usuarioColumns+`
		FROM usuarios u
		LEFT JOIN fazendas f ON f.id = u.fazenda_id
		WHERE u.id = $1
	`, id))
}

// InsertUsuario grava um novo perfil, completo ou não.
func (q *Queries) InsertUsuario(ctx context.Context, arg InsertUsuarioParams) (Usuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := q.db.Exec(ctx, `
		INSERT INTO usuarios (id, email, nome, sobrenome, senha_hash, provedor, provedor_id, foto_url, cpf, data_nascimento, papel, fazenda_id)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, arg.ID, arg.Email, arg.Nome, arg.Sobrenome, arg.SenhaHash, arg.Provedor, arg.ProvedorID, arg.FotoURL,
		arg.CPF, arg.DataNascimento, arg.Papel, arg.FazendaID)
	if err != nil {
		return Usuario{}, uniqueErr(err)
	}
	return q.GetUsuarioByID(ctx, arg.ID)
}

// CompletarPerfil aplica merge dos campos de identificação sem tocar nos demais.
func (q *Queries) CompletarPerfil(ctx context.Context, arg CompletarPerfilParams) (Usuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := q.db.Exec(ctx, `
		UPDATE usuarios
		SET nome = COALESCE(NULLIF($2, ''), nome),
		    sobrenome = COALESCE(NULLIF($3, ''), sobrenome),
		    cpf = $4,
		    data_nascimento = $5,
		    papel = $6,
		    fazenda_id = $7,
		    atualizado_em = now()
		WHERE id = $1
	`, arg.ID, arg.Nome, arg.Sobrenome, arg.CPF, arg.DataNascimento, arg.Papel, arg.FazendaID)
	if err != nil {
		return Usuario{}, uniqueErr(err)
	}
	if tag.RowsAffected() == 0 {
		return Usuario{}, ErrNotFound
	}
	return q.GetUsuarioByID(ctx, arg.ID)
}

// RemoverPerfilPendente apaga um perfil criado pelo login federado que nunca foi completado.
func (q *Queries) RemoverPerfilPendente(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := q.db.Exec(ctx, `
		DELETE FROM usuarios
		WHERE id = $1 AND (cpf IS NULL OR data_nascimento IS NULL)
	`, id)
	return err
}

// ListMembrosPorPapel lista usuários ativos de um papel, opcionalmente excluindo um id.
func (q *Queries) ListMembrosPorPapel(ctx context.Context, papel string, excluir *uuid.UUID) ([]Membro, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := q.db.Query(ctx, `
		SELECT id, trim(nome || ' ' || sobrenome), email, fazenda_id
		FROM usuarios
		WHERE papel = $1 AND ativo AND ($2::uuid IS NULL OR id <> $2)
		ORDER BY nome, sobrenome
	`, papel, excluir)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var membros []Membro
	for rows.Next() {
		var m Membro
		if err := rows.Scan(&m.ID, &m.NomeCompleto, &m.Email, &m.FazendaID); err != nil {
			return nil, err
		}
		membros = append(membros, m)
	}
	return membros, rows.Err()
}

// GetRefreshTokenByHash busca refresh pelo hash.
func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (TokenRefresh, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var t TokenRefresh
	err := q.db.QueryRow(ctx, `
		SELECT id, subject, audience, token_hash, expiracao, criado_em, revogado
		FROM tokens_refresh
		WHERE token_hash = $1
	`, tokenHash).Scan(&t.ID, &t.Subject, &t.Audience, &t.TokenHash, &t.Expiracao, &t.CriadoEm, &t.Revogado)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenRefresh{}, ErrNotFound
		}
		return TokenRefresh{}, err
	}
	return t, nil
}

// InsertRefreshToken persiste novo refresh.
func (q *Queries) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (TokenRefresh, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := q.db.Exec(ctx, `
		INSERT INTO tokens_refresh (id, subject, audience, token_hash, expiracao, criado_em)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, arg.ID, arg.Subject, arg.Audience, arg.TokenHash, arg.Expiracao, arg.CriadoEm)
	if err != nil {
		return TokenRefresh{}, err
	}
	return TokenRefresh{
		ID:        arg.ID,
		Subject:   arg.Subject,
		Audience:  arg.Audience,
		TokenHash: arg.TokenHash,
		Expiracao: arg.Expiracao,
		CriadoEm:  arg.CriadoEm,
	}, nil
}

// InvalidateOtherRefreshTokens revoga os demais refresh do mesmo subject.
func (q *Queries) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := q.db.Exec(ctx, `
		UPDATE tokens_refresh
		SET revogado = true
		WHERE subject = $1 AND audience = $2 AND token_hash <> $3 AND NOT revogado
	`, subject, audience, keepHash)
	return err
}

// RevokeRefreshToken marca refresh como revogado.
func (q *Queries) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := q.db.Exec(ctx, `UPDATE tokens_refresh SET revogado = true WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func uniqueErr(err error) error {
	switch {
	case db.IsUniqueViolation(err, "usuarios_email_key"):
		return ErrEmailEmUso
	case db.IsUniqueViolation(err, "usuarios_cpf_key"):
		return ErrCPFEmUso
	case db.IsForeignKeyViolation(err, "usuarios_fazenda_id_fkey"):
		return ErrFazendaInexistente
	}
	return err
}

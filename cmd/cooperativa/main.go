package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coopagro/gestao/internal/armazenamento"
	"github.com/coopagro/gestao/internal/db"
	"github.com/coopagro/gestao/internal/fazenda"
	"github.com/coopagro/gestao/internal/insumo"
	"github.com/coopagro/gestao/internal/metrics"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN ou DATABASE_URL")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	fazendas := fazenda.NewService(fazenda.NewRepository(pool))
	locais := armazenamento.NewService(armazenamento.NewRepository(pool), metrics.New())

	recurso, cmd, args := os.Args[1], os.Args[2], os.Args[3:]

	switch recurso + " " + cmd {
	case "fazenda create":
		err = runCriarFazenda(ctx, fazendas, args)
	case "fazenda list":
		err = imprimir(fazendas.Listar(ctx))
	case "local create":
		err = runCriarLocal(ctx, locais, args)
	case "local list":
		err = imprimir(locais.ListarLocais(ctx, nil))
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Str("comando", recurso+" "+cmd).Msg("falha ao executar comando")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "cooperativa CLI")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  cooperativa fazenda create --nome \"Fazenda Sol\" --cnpj 11.222.333/0001-81 [--endereco \"Estrada 3, km 12\"]")
	fmt.Fprintln(os.Stderr, "  cooperativa fazenda list")
	fmt.Fprintln(os.Stderr, "  cooperativa local create --nome \"Silo 1\" --tipo kg --capacidade 1000")
	fmt.Fprintln(os.Stderr, "  cooperativa local list")
}

func runCriarFazenda(ctx context.Context, service *fazenda.Service, args []string) error {
	fs := flag.NewFlagSet("fazenda create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		nome     = fs.String("nome", "", "nome da fazenda")
		cnpj     = fs.String("cnpj", "", "CNPJ com ou sem pontuação")
		endereco = fs.String("endereco", "", "endereço")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *nome == "" || *cnpj == "" {
		return errors.New("nome e cnpj são obrigatórios")
	}

	return imprimir(service.Criar(ctx, fazenda.CriarInput{Nome: *nome, CNPJ: *cnpj, Endereco: *endereco}))
}

func runCriarLocal(ctx context.Context, service *armazenamento.Service, args []string) error {
	fs := flag.NewFlagSet("local create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		nome       = fs.String("nome", "", "nome do local")
		tipo       = fs.String("tipo", "", "unidade armazenada (kg, g, l, ml, un, cx, sc)")
		capacidade = fs.Float64("capacidade", 0, "capacidade máxima na unidade do local")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return imprimir(service.RegistrarLocal(ctx, armazenamento.RegistrarLocalInput{
		Nome:              *nome,
		TipoArmazenamento: insumo.UnidadeMedida(strings.ToLower(*tipo)),
		CapacidadeMaxima:  *capacidade,
	}))
}

func imprimir(v any, err error) error {
	if err != nil {
		return err
	}
	encoded, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(encoded))
	return nil
}

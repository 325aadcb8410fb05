package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/coopagro/gestao/internal/auth"
	"github.com/coopagro/gestao/internal/util"
)

// hashpass gera o hash argon2id de uma senha para semear usuários no banco.
// Sem argumento, lê a senha da primeira linha da entrada padrão.
func main() {
	senha, err := lerSenha(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "uso: hashpass <senha>  |  echo senha | hashpass")
		os.Exit(1)
	}

	if err := util.ValidatePassword(senha); err != nil {
		fmt.Fprintf(os.Stderr, "senha recusada: %v\n", err)
		os.Exit(1)
	}

	hash, err := auth.Hash(senha)
	if err != nil {
		fmt.Fprintf(os.Stderr, "falha ao gerar hash: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}

func lerSenha(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	linha, err := bufio.NewReader(os.Stdin).ReadString('\n')
	linha = strings.TrimRight(linha, "\r\n")
	if linha == "" {
		if err == nil {
			err = fmt.Errorf("senha vazia")
		}
		return "", err
	}
	return linha, nil
}

package venda

import (
	"bytes"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/coopagro/gestao/internal/util"
)

func gerarCSV(vendas []Venda) ([]byte, error) {
	var (
		datas       = make([]string, len(vendas))
		produtos    = make([]string, len(vendas))
		quantidades = make([]float64, len(vendas))
		regioes     = make([]string, len(vendas))
		fazendas    = make([]string, len(vendas))
		locais      = make([]string, len(vendas))
	)
	for i, v := range vendas {
		datas[i] = util.FormatarData(v.DataVenda)
		produtos[i] = v.ProdutoNome
		quantidades[i] = v.Quantidade
		regioes[i] = string(v.Regiao)
		fazendas[i] = v.FazendaNome
		locais[i] = v.LocalID.String()
	}

	df := dataframe.New(
		series.New(datas, series.String, "data"),
		series.New(produtos, series.String, "produto"),
		series.New(quantidades, series.Float, "quantidade"),
		series.New(regioes, series.String, "regiao"),
		series.New(fazendas, series.String, "fazenda"),
		series.New(locais, series.String, "local"),
	)
	if err := df.Error(); err != nil {
		return nil, fmt.Errorf("montar relatório: %w", err)
	}

	var buf bytes.Buffer
	if err := df.WriteCSV(&buf); err != nil {
		return nil, fmt.Errorf("gerar csv: %w", err)
	}
	return buf.Bytes(), nil
}

package util

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// FormatoData é o formato de exibição usado nas listagens (dd/mm/aaaa).
const FormatoData = "02/01/2006"

var fusoPadrao = carregarFuso()

func carregarFuso() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

type comAsTime interface {
	AsTime() time.Time
}

type comToDate interface {
	ToDate() time.Time
}

// Data decodifica datas de payloads JSON com as mesmas regras de ParaData:
// texto ISO ou dd/mm/aaaa, milissegundos ou objeto {seconds, nanos}.
// Valor não reconhecido vira data zero; quem consome valida o campo.
type Data struct {
	time.Time
}

func (d *Data) UnmarshalJSON(raw []byte) error {
	t, ok := ParaData(json.RawMessage(raw))
	if !ok {
		d.Time = time.Time{}
		return nil
	}
	d.Time = t
	return nil
}

// ParaData aplica a cadeia de conversão: time.Time, objeto com AsTime/ToDate,
// mapa ou struct com segundos e nanos e, por fim, coerção de string ou número.
func ParaData(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return *val, !val.IsZero()
	case *timestamppb.Timestamp:
		if val == nil || val.CheckValid() != nil {
			return time.Time{}, false
		}
		return val.AsTime(), true
	case comAsTime:
		return val.AsTime(), true
	case comToDate:
		return val.ToDate(), true
	case map[string]any:
		return deSegundos(val)
	case json.RawMessage:
		return deJSON(val)
	case []byte:
		return deJSON(val)
	case string:
		return deTexto(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return deMillis(f)
		}
		return deTexto(val.String())
	case float64:
		return deMillis(val)
	case float32:
		return deMillis(float64(val))
	case int64:
		return deMillis(float64(val))
	case int:
		return deMillis(float64(val))
	}
	return time.Time{}, false
}

// FormatarData formata qualquer representação aceita por ParaData como dd/mm/aaaa.
func FormatarData(v any) string {
	t, ok := ParaData(v)
	if !ok {
		return ""
	}
	return t.In(fusoPadrao).Format(FormatoData)
}

// CompararDatas ordena dois valores de data; datas inválidas ficam por último.
// Retorna negativo quando a vem antes de b na ordem pedida.
func CompararDatas(a, b any, decrescente bool) int {
	ta, okA := ParaData(a)
	tb, okB := ParaData(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	cmp := ta.Compare(tb)
	if decrescente {
		return -cmp
	}
	return cmp
}

func deSegundos(m map[string]any) (time.Time, bool) {
	seg, ok := numero(m["seconds"])
	if !ok {
		if seg, ok = numero(m["_seconds"]); !ok {
			return time.Time{}, false
		}
	}
	var nanos float64
	for _, k := range []string{"nanoseconds", "nanos", "_nanoseconds"} {
		if n, ok := numero(m[k]); ok {
			nanos = n
			break
		}
	}
	ts := &timestamppb.Timestamp{Seconds: int64(seg), Nanos: int32(nanos)}
	if ts.CheckValid() != nil {
		return time.Time{}, false
	}
	return ts.AsTime(), true
}

func deJSON(raw []byte) (time.Time, bool) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return time.Time{}, false
	}
	return ParaData(decoded)
}

func deTexto(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := time.ParseInLocation(FormatoData, s, fusoPadrao); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func deMillis(ms float64) (time.Time, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}

func numero(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

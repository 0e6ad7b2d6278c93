// utilitários de formatação para headers e corpo das respostas de bloqueio.

package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// retryAfterSeconds arredonda para cima: o cliente nunca volta antes da hora.
func retryAfterSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return formatInt(int(math.Ceil(d.Seconds())))
}

// reject responde no mesmo formato de erro das rotas da API: {"error": "..."}.
func reject(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

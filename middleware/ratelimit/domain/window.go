package domain

import (
	"context"
	"time"
)

// WindowResult é o estado da janela fixa de uma chave logo após um hit.
type WindowResult struct {
	Count   int
	Limit   int
	ResetAt time.Time
}

// Remaining nunca é negativo.
func (r WindowResult) Remaining() int {
	if r.Count >= r.Limit {
		return 0
	}
	return r.Limit - r.Count
}

// Exceeded indica que o hit atual passou do limite da janela.
func (r WindowResult) Exceeded() bool { return r.Count > r.Limit }

// WindowCounter conta hits por chave dentro de uma janela fixa.
//
// A janela começa no primeiro hit da chave e expira depois de Window();
// o próximo hit abre uma janela nova. Implementações precisam ser seguras
// para uso concorrente.
type WindowCounter interface {
	Hit(ctx context.Context, key Key) (WindowResult, error)
}

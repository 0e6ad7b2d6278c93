package domain

import (
	"context"
	"errors"
)

// ErrBusy indica que nenhuma vaga abriu dentro do prazo de espera.
var ErrBusy = errors.New("ratelimit: no free slot")

// SlotPool limita chamadas simultâneas a um upstream.
//
// Acquire bloqueia até haver vaga ou o ctx encerrar. O release devolvido pode
// ser chamado mais de uma vez; só a primeira chamada libera a vaga.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	InUse() int
	Cap() int
}

// Package upstream reúne o que os clientes de APIs externas têm em comum:
// o erro devolvido quando o serviço remoto responde mal.
package upstream

import (
	"errors"
	"fmt"
)

// ErrNotConfigured indica que a chave/URL do serviço está vazia.
var ErrNotConfigured = errors.New("upstream: not configured")

// Error é uma resposta não-2xx (ou ilegível) de um upstream. Status é o
// código HTTP recebido, 0 quando a falha foi de transporte. Message vai
// para o cliente; o detalhe de Err fica só no log.
type Error struct {
	Service string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Service, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Service, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap converte err em *Error mantendo a causa. A mensagem pública fica
// vazia: erros de transporte carregam URLs e hosts internos.
func Wrap(service string, err error) error {
	if err == nil {
		return nil
	}
	var ue *Error
	if errors.As(err, &ue) {
		return err
	}
	return &Error{Service: service, Err: err}
}

package agreement

import (
	"errors"
	"fmt"
)

var (
	ErrHttpIoError         = errors.New("http io error")
	ErrHttpDeadlineReached = errors.New("http deadline reached")
	ErrHttpUnknown         = errors.New("http unknown response")
	ErrHttpBodyNotUTF8     = errors.New("http body is not utf8")
	ErrBtcSerialization    = errors.New("btc serialization error")
	ErrBtcSendRawTx        = errors.New("btc send raw transaction error")
)

// StatusError is returned when the explorer answers with anything but 200.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status=%d, body=%q", ErrHttpUnknown, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrHttpUnknown
}

// SendRawTxError is the rejection reported by the explorer's bitcoin node.
type SendRawTxError struct {
	Code    int64
	Message string
}

func (e *SendRawTxError) Error() string {
	return fmt.Sprintf("%v: code=%d, message=%s", ErrBtcSendRawTx, e.Code, e.Message)
}

func (e *SendRawTxError) Unwrap() error {
	return ErrBtcSendRawTx
}

func ErrSerialization(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBtcSerialization, what, err)
}

func ErrUnknownBroadcastResponse(body string) error {
	return fmt.Errorf("%w: unknown response format %q", ErrBtcSendRawTx, body)
}

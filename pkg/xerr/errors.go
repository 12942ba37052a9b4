package xerr

import (
	"errors"
	"fmt"
)

// Common error codes.
const (
	OK                 = 200
	Accepted           = 202
	ServerCommonError  = 500
	RequestParamsError = 400
	DbError            = 501
	RecordNotFound     = 404
	StateConflict      = 409
	GatewayFailure     = 502
	PayloadParseError  = 422
)

type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code) + ": " + msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

func MapErrMsg(code int) string {
	switch code {
	case ServerCommonError:
		return "internal error"
	case RequestParamsError:
		return "invalid request"
	case DbError:
		return "database error"
	case RecordNotFound:
		return "record not found"
	case StateConflict:
		return "state conflict"
	case GatewayFailure:
		return "vault gateway error"
	case PayloadParseError:
		return "payload parse error"
	default:
		return "unknown error"
	}
}

// ValidationError reports malformed input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown wallet, transaction or request.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func NotFound(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

// ConflictError reports an invalid state transition. Current is the status
// observed when the transition was refused, if known.
type ConflictError struct {
	Msg     string
	Current string
}

func (e *ConflictError) Error() string {
	if e.Current == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s (current status %s)", e.Msg, e.Current)
}

func Conflict(current, format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...), Current: current}
}

// CooldownActiveError refuses a withdrawal execution before availableAt.
// The OnChain fields are diagnostics read from the vault and may be empty.
type CooldownActiveError struct {
	AmountWei            string
	AvailableAt          int64
	OnChainPendingAmount string
	OnChainAvailableAt   int64
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("withdrawal cooldown active until %d", e.AvailableAt)
}

// GatewayError wraps a failed on-chain submission, confirmation or read.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("vault %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func Gateway(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UnconfirmedError
	if errors.As(err, &ue) {
		return err
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return err
	}
	return &GatewayError{Op: op, Err: err}
}

// UnconfirmedError means the transaction was broadcast but no receipt arrived
// before the caller's deadline. It may still land.
type UnconfirmedError struct {
	Op     string
	TxHash string
}

func (e *UnconfirmedError) Error() string {
	return fmt.Sprintf("vault %s submitted but unconfirmed: %s", e.Op, e.TxHash)
}

// ParseError reports a malformed webhook entry.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func Parse(field string, err error) error {
	return &ParseError{Field: field, Err: err}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsGateway(err error) bool {
	var e *GatewayError
	return errors.As(err, &e)
}

// HTTPStatus maps the error taxonomy onto a response status.
func HTTPStatus(err error) int {
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		cd *CooldownActiveError
		ue *UnconfirmedError
		pe *ParseError
		ge *GatewayError
		co *CodeError
	)
	switch {
	case err == nil:
		return OK
	case errors.As(err, &ve):
		return RequestParamsError
	case errors.As(err, &nf):
		return RecordNotFound
	case errors.As(err, &ce), errors.As(err, &cd):
		return StateConflict
	case errors.As(err, &ue):
		return Accepted
	case errors.As(err, &pe):
		return RequestParamsError
	case errors.As(err, &ge):
		return ServerCommonError
	case errors.As(err, &co):
		if co.Code >= 400 && co.Code < 500 {
			return co.Code
		}
		return ServerCommonError
	default:
		return ServerCommonError
	}
}

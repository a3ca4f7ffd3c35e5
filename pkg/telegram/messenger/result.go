package messenger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// Kind различает исходы вызова Telegram.
type Kind int

const (
	KindOK Kind = iota
	KindFloodWait
	KindFatal
	KindTransient
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindFloodWait:
		return "flood-wait"
	case KindFatal:
		return "fatal"
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not-found"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result описывает размеченный результат вызова Telegram.
// Ошибки провайдера не всплывают наружу как error, вызывающий код ветвится по Kind.
type Result struct {
	Kind    Kind
	Seconds int    // длительность флуд-вейта для KindFloodWait
	Reason  string // текст ошибки провайдера
}

func OK() Result { return Result{Kind: KindOK} }
func FloodWait(seconds int) Result { return Result{Kind: KindFloodWait, Seconds: seconds, Reason: fmt.Sprintf("FLOOD_WAIT_%d", seconds)} }
func Fatal(reason string) Result { return Result{Kind: KindFatal, Reason: reason} }
func Transient(reason string) Result { return Result{Kind: KindTransient, Reason: reason} }
func NotFound(reason string) Result { return Result{Kind: KindNotFound, Reason: reason} }

func (r Result) IsOK() bool { return r.Kind == KindOK }

func (r Result) String() string {
	if r.Reason == "" {
		return r.Kind.String()
	}
	return r.Kind.String() + ": " + r.Reason
}

// Handle представляет живое подключение аккаунта к Telegram.
type Handle interface {
	SelfID() int64
}

// Target указывает адресата, которому можно отправить сообщение.
type Target struct {
	Peer    tg.InputPeerClass
	Display string
}

// Ошибки, после которых сессия аккаунта больше не пригодна.
var fatalTypes = map[string]bool{
	"SESSION_REVOKED":      true,
	"SESSION_EXPIRED":      true,
	"USER_DEACTIVATED":     true,
	"USER_DEACTIVATED_BAN": true,
	"PHONE_NUMBER_BANNED":  true,
}

// Ошибки, означающие отсутствие адресата в Telegram.
var notFoundTypes = map[string]bool{
	"PHONE_NOT_OCCUPIED":    true,
	"USERNAME_NOT_OCCUPIED": true,
	"USERNAME_INVALID":      true,
	"PEER_ID_INVALID":       true,
}

var errUnauthorized = errors.New("session is not authorized")

// Classify переводит ошибку gotd в размеченный результат.
func Classify(err error) Result {
	if err == nil {
		return OK()
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return FloodWait(int(d.Seconds()))
	}
	if errors.Is(err, errUnauthorized) {
		return Fatal(err.Error())
	}
	if rpcErr, ok := tgerr.As(err); ok {
		switch {
		case strings.HasPrefix(rpcErr.Type, "AUTH_KEY"), fatalTypes[rpcErr.Type]:
			return Fatal(rpcErr.Type)
		case notFoundTypes[rpcErr.Type]:
			return NotFound(rpcErr.Type)
		}
		if auth.IsUnauthorized(err) {
			return Fatal(rpcErr.Type)
		}
		return Transient(err.Error())
	}
	return Transient(err.Error())
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"staykeeper/internal/app/commands"
	"staykeeper/internal/domain/shared/errs"
)

// IdempotentCommand is implemented by commands a client may safely resend.
// ResultPrototype returns a fresh pointer of the handler's result type.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any
}

// IdempotencyRecord is the stored outcome of one keyed command. Exactly one
// of Payload and Error is set.
type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	Error      string
	ErrorKind  string
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONResultCodec) Decode(data []byte, out any) error { return json.Unmarshal(data, out) }

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays the stored outcome of a command whose key was already
// seen. Keys are scoped by command and by actor, so two callers reusing one
// client key never share a record. Retryable failures are not stored.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	m := idempotency{store: store, codec: codec, now: time.Now}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			key := idempotencyKey(cmd, idCmd.IdempotencyKey())
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, errs.FromContext(err)
			}
			if found {
				return m.replay(rec, idCmd.ResultPrototype())
			}
			result, err := nextFn(ctx, cmd)
			return m.remember(ctx, key, result, err)
		})
	}
}

const anonymousActor = "-"

func idempotencyKey(cmd commands.Command, clientKey string) string {
	actor := anonymousActor
	if a, ok := cmd.(Actor); ok {
		if id := strings.TrimSpace(a.ActorID()); id != "" {
			actor = id
		}
	}
	return cmd.Key() + ":" + actor + ":" + clientKey
}

type idempotency struct {
	store IdempotencyStore
	codec ResultCodec
	now   func() time.Time
}

func (m idempotency) replay(rec IdempotencyRecord, proto any) (any, error) {
	if rec.Error != "" {
		if kind := errs.KindByName(rec.ErrorKind); kind != nil {
			return nil, errs.New(kind, rec.Error)
		}
		return nil, errors.New(rec.Error)
	}
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := m.codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return proto, nil
}

// remember stores the outcome and hands it back unchanged. A failed save
// after a successful command is reported; the command itself stays committed.
func (m idempotency) remember(ctx context.Context, key string, result any, cmdErr error) (any, error) {
	if cmdErr != nil && errs.Retryable(cmdErr) {
		return nil, cmdErr
	}
	rec := IdempotencyRecord{Key: key, OccurredAt: m.now().UTC()}
	if cmdErr != nil {
		rec.Error = cmdErr.Error()
		if kind := errs.KindOf(cmdErr); kind != nil {
			rec.ErrorKind = kind.Error()
		}
		if err := m.store.Save(ctx, rec); err != nil {
			return nil, errors.Join(cmdErr, err)
		}
		return nil, cmdErr
	}
	if result != nil {
		payload, err := m.codec.Encode(result)
		if err != nil {
			return nil, err
		}
		rec.Payload = payload
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return result, nil
}

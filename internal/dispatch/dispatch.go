// Package dispatch implements the action registry and dispatcher (C4):
// it decodes a request frame, looks up a named handler, runs it under
// the registry's single mutex, and packs the response envelope.
package dispatch

import (
	"github.com/vuuvv/errors"

	"github.com/Tachiguishi/iec61850-simulator/internal/logging"
	"github.com/Tachiguishi/iec61850-simulator/internal/registry"
	"github.com/Tachiguishi/iec61850-simulator/internal/wire"
)

// Context is everything a handler needs: the action name (for logging),
// the shared registry, and the decoded payload, per spec.md §4.4's
// `ctx = {action_name, &mut BackendContext, &payload, has_payload}`.
type Context struct {
	Action     string
	Registry   *registry.BackendContext
	Payload    map[string]any
	HasPayload bool
}

// Handler handles one action. It returns the success payload map, or an
// error whose message becomes the response envelope's error message.
// Handlers never need to touch the envelope's id/type/error-vs-success
// framing themselves — Dispatch does that uniformly.
type Handler func(ctx *Context) (map[string]any, error)

var registered = map[string]Handler{}

// Register adds handler under name to the action table. Per spec.md
// §4.4, registration happens exactly once at program start (each
// serveractions/clientactions package registers its handlers from an
// init func); a duplicate name is a programmer error, so Register
// panics rather than silently letting the last one win.
func Register(name string, handler Handler) {
	if _, exists := registered[name]; exists {
		panic("dispatch: action already registered: " + name)
	}
	registered[name] = handler
}

// Lookup returns the handler registered under name, if any. It exists so
// serveractions/clientactions tests can exercise a single handler
// directly (under their own registry lock) without round-tripping
// through the wire codec.
func Lookup(name string) (Handler, bool) {
	h, ok := registered[name]
	return h, ok
}

// Sentinel errors for the common handler preconditions spec.md §4.4 and
// §7 name literally; handlers return these (or wrap them) so their
// messages reach the wire unchanged.
var (
	ErrMissingPayload     = errors.New("Missing payload")
	ErrInstanceIDRequired = errors.New("instance_id is required")
)

// RequirePayload implements ensure_payload_map (spec.md §4.4): a handler
// calls this first and returns its error directly if non-nil.
func RequirePayload(ctx *Context) (map[string]any, error) {
	if !ctx.HasPayload || ctx.Payload == nil {
		return nil, ErrMissingPayload
	}
	return ctx.Payload, nil
}

// RequireInstanceID implements validate_and_extract_instance_id
// (spec.md §4.4).
func RequireInstanceID(payload map[string]any) (string, error) {
	id := wire.AsString(mustLookup(payload, "instance_id"), "")
	if id == "" {
		return "", ErrInstanceIDRequired
	}
	return id, nil
}

func mustLookup(payload map[string]any, key string) any {
	v, _ := wire.FindKey(payload, key)
	return v
}

// Dispatch decodes body, runs the matching handler (if any) under
// reg's mutex, and returns the encoded response frame body. It never
// returns an error itself: every failure mode (decode error, unknown
// action, handler error) becomes a valid response envelope, per
// spec.md §4.4's "dispatcher emits all four keys itself with empty id"
// rule for decode failures.
func Dispatch(reg *registry.BackendContext, body []byte) []byte {
	req, err := wire.DecodeRequest(body)
	if err != nil {
		return encode(wire.Failure("", "Decode error: "+err.Error()))
	}

	logging.L().Debug("dispatch request", logging.Action(req.Action, instanceIDOf(req.Payload))...)

	handler, ok := registered[req.Action]
	if !ok {
		logging.Warn("unknown action", logging.Action(req.Action, "")...)
		return encode(wire.Failure(req.ID, "Unknown action"))
	}

	ctx := &Context{Action: req.Action, Registry: reg, Payload: req.Payload, HasPayload: req.HasPayload}

	reg.Lock()
	payload, handlerErr := handler(ctx)
	reg.Unlock()

	if handlerErr != nil {
		logging.Warn(handlerErr, logging.Action(req.Action, instanceIDOf(req.Payload))...)
		return encode(wire.Failure(req.ID, handlerErr.Error()))
	}
	return encode(wire.Success(req.ID, payload))
}

func encode(resp wire.Response) []byte {
	out, err := wire.EncodeResponse(resp)
	if err != nil {
		// EncodeResponse only fails if msgpack itself cannot encode a
		// plain map/string/bool value, which none of our handlers ever
		// produce; treat it as the programmer error it would be.
		panic(errors.Wrap(err, "encode response"))
	}
	return out
}

func instanceIDOf(payload map[string]any) string {
	return wire.AsString(mustLookup(payload, "instance_id"), "")
}

package protocol

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"souls/internal/apperr"
)

// Codec turns frames into envelopes and back.
type Codec interface {
	Decode(frame []byte) (Envelope, error)
	Encode(env Envelope) ([]byte, error)
}

type JSONCodec struct{}

func (JSONCodec) Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, apperr.Wrap(apperr.MalformedMessage, err, "message is not a valid envelope")
	}
	if env.Type == "" {
		return Envelope{}, apperr.New(apperr.MalformedMessage, "message has no type")
	}
	return env, nil
}

func (JSONCodec) Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// NewEnvelope marshals payload into an envelope of type t. A nil payload
// produces an envelope without one.
func NewEnvelope(t Type, payload any) (Envelope, error) {
	env := Envelope{Type: t}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Payload = raw
	return env, nil
}

var (
	validate       = validator.New(validator.WithRequiredStructEnabled())
	playerNameExpr = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("playername", func(fl validator.FieldLevel) bool {
		return playerNameExpr.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

// DecodePayload unmarshals raw into v and validates its struct tags.
func DecodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.Wrap(apperr.MalformedMessage, err, "payload does not match message type")
	}
	if err := validate.Struct(v); err != nil {
		return apperr.New(apperr.InvalidPayload, "%s", describe(err))
	}
	return nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "playername":
		return fe.Field() + " may contain only letters, digits, '_' and '-'"
	}
	return fe.Error()
}

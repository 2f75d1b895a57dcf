package app

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"datasanitizer/internal/reason"
)

var validate = validator.New()

// DecodeSanitizeRequest переводит свободный payload фронтенда в SanitizeRequest.
// Неизвестные поля и нарушения ограничений дают InvalidRequest.
func DecodeSanitizeRequest(payload map[string]any) (SanitizeRequest, error) {
	var req SanitizeRequest
	if payload == nil {
		return req, reason.New(reason.InvalidRequest, "empty request")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return req, reason.Wrap(err, reason.InvalidRequest, "encode request")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return SanitizeRequest{}, reason.Wrap(err, reason.InvalidRequest, "decode request")
	}

	req.Identifier = strings.TrimSpace(req.Identifier)
	if err := ValidateRequest(req); err != nil {
		return SanitizeRequest{}, err
	}
	return req, nil
}

// ValidateRequest проверяет ограничения полей запроса
func ValidateRequest(req SanitizeRequest) error {
	if err := validate.Struct(req); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			names := make([]string, 0, len(fields))
			for _, f := range fields {
				names = append(names, f.Namespace()+" ("+f.Tag()+")")
			}
			return reason.New(reason.InvalidRequest, "invalid request fields: %s", strings.Join(names, ", "))
		}
		return reason.Wrap(err, reason.InvalidRequest, "validate request")
	}
	return nil
}

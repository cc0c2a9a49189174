package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
)

var phonePattern = regexp.MustCompile(`^(\+62|62|0)[0-9]{9,12}$`)

// FieldEncryptor seals and opens individual custom field values.
type FieldEncryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// FieldError describes a rejected custom field value.
type FieldError struct {
	Key     string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

// errEncryption marks a failure of the encryptor, as opposed to bad input.
type errEncryption struct{ err error }

func (e errEncryption) Error() string { return "encrypt custom field: " + e.err.Error() }
func (e errEncryption) Unwrap() error { return e.err }

type customFieldCodec struct {
	defs      map[string]models.CustomField
	validator *validator.Validate
	cipher    FieldEncryptor
	logger    *zap.Logger
}

func newCustomFieldCodec(defs []models.CustomField, validate *validator.Validate, cipher FieldEncryptor, logger *zap.Logger) *customFieldCodec {
	index := make(map[string]models.CustomField, len(defs))
	for _, def := range defs {
		index[def.Key] = def
	}
	return &customFieldCodec{defs: index, validator: validate, cipher: cipher, logger: logger}
}

// merge validates incoming values against the field definitions, encrypts the
// sensitive ones and overlays them on the stored document. Unknown keys are
// dropped and an explicit null removes the stored value.
func (c *customFieldCodec) merge(stored types.JSONText, incoming map[string]json.RawMessage) (types.JSONText, error) {
	doc := map[string]json.RawMessage{}
	if len(stored) > 0 {
		if err := json.Unmarshal(stored, &doc); err != nil {
			c.logger.Warn("stored custom field values are not an object, replacing", zap.Error(err))
			doc = map[string]json.RawMessage{}
		}
	}

	keys := make([]string, 0, len(incoming))
	for key := range incoming {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		def, known := c.defs[key]
		if !known {
			continue
		}
		value, err := models.DecodeFieldValue(def.FieldType, incoming[key])
		if models.IsNullField(err) {
			delete(doc, key)
			continue
		}
		if err != nil {
			return nil, FieldError{Key: key, Message: err.Error()}
		}
		if err := c.check(def, value); err != nil {
			return nil, err
		}

		var encoded []byte
		if def.IsEncrypted && !value.IsEmpty() {
			if c.cipher == nil {
				return nil, errEncryption{errors.New("no field cipher configured")}
			}
			sealed, err := c.cipher.Encrypt(value.String())
			if err != nil {
				return nil, errEncryption{err}
			}
			encoded, err = json.Marshal(sealed)
			if err != nil {
				return nil, err
			}
		} else {
			encoded, err = json.Marshal(value)
			if err != nil {
				return nil, FieldError{Key: key, Message: "unsupported value"}
			}
		}
		doc[key] = encoded
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return types.JSONText(out), nil
}

func (c *customFieldCodec) check(def models.CustomField, value models.FieldValue) error {
	if value.IsEmpty() {
		return nil
	}
	switch def.FieldType {
	case models.FieldEmail:
		if err := c.validator.Var(value.Text, "email"); err != nil {
			return FieldError{Key: def.Key, Message: "invalid email address"}
		}
	case models.FieldTel:
		if !phonePattern.MatchString(strings.ReplaceAll(value.Text, " ", "")) {
			return FieldError{Key: def.Key, Message: "invalid phone number"}
		}
	case models.FieldText, models.FieldTextarea:
		if len(value.Text) > 5000 {
			return FieldError{Key: def.Key, Message: "value too long"}
		}
	}
	return nil
}

// answered keeps only known field keys, deduplicated in first-seen order.
func (c *customFieldCodec) answered(keys []string) (types.JSONText, error) {
	if keys == nil {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(keys))
	filtered := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, known := c.defs[key]; !known {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		filtered = append(filtered, key)
	}
	out, err := json.Marshal(filtered)
	if err != nil {
		return nil, err
	}
	return types.JSONText(out), nil
}

// reveal decodes the stored document and decrypts sensitive fields. Values
// that fail to decrypt are returned as stored.
func (c *customFieldCodec) reveal(stored types.JSONText) map[string]interface{} {
	out := map[string]interface{}{}
	if len(stored) == 0 {
		return out
	}
	if err := json.Unmarshal(stored, &out); err != nil {
		c.logger.Warn("stored custom field values are not an object", zap.Error(err))
		return map[string]interface{}{}
	}
	for key, raw := range out {
		def, known := c.defs[key]
		if !known || !def.IsEncrypted {
			continue
		}
		sealed, ok := raw.(string)
		if !ok || sealed == "" || c.cipher == nil {
			continue
		}
		plain, err := c.cipher.Decrypt(sealed)
		if err != nil {
			c.logger.Warn("custom field decrypt failed, returning stored value", zap.String("key", key), zap.Error(err))
			continue
		}
		out[key] = plain
	}
	return out
}

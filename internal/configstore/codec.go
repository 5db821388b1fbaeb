package configstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

// Codec converts a batch to and from its persisted text form
type Codec interface {
	Name() string
	Marshal(batch models.Batch) ([]byte, error)
	Unmarshal(data []byte) (models.Batch, error)
}

var (
	JSON Codec = jsonCodec{}
	YAML Codec = yamlCodec{}
)

// CodecFor picks the codec from a file extension; anything that is not YAML is JSON
func CodecFor(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(batch models.Batch) ([]byte, error) {
	records, err := fromBatch(batch)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return append(data, '\n'), nil
}

func (jsonCodec) Unmarshal(data []byte) (models.Batch, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, malformed(-1, "", "empty document")
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, jsonError(err)
	}
	return toBatch(records)
}

func jsonError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return malformed(-1, "", fmt.Sprintf("expected a list of sessions, got %s", typeErr.Value))
		}
		return malformed(-1, "", fmt.Sprintf("field %s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value))
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return malformed(-1, "", fmt.Sprintf("invalid JSON at offset %d: %v", syntaxErr.Offset, err))
	}

	return malformed(-1, "", err.Error())
}

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }

func (yamlCodec) Marshal(batch models.Batch) ([]byte, error) {
	records, err := fromBatch(batch)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func (yamlCodec) Unmarshal(data []byte) (models.Batch, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, malformed(-1, "", "empty document")
	}

	var records []record
	if err := yaml.Unmarshal(data, &records); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return nil, malformed(-1, "", strings.Join(typeErr.Errors, "; "))
		}
		return nil, malformed(-1, "", fmt.Sprintf("invalid YAML: %v", err))
	}
	return toBatch(records)
}

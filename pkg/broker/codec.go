package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

const (
	ContentTypeJSON   = "application/json"
	ContentTypeCBOR   = "application/cbor"
	ContentTypeBinary = "application/octet-stream"
)

// Codec serializes event payloads for one content type.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) ContentType() string                { return ContentTypeJSON }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborCodec struct{}

func (cborCodec) ContentType() string                { return ContentTypeCBOR }
func (cborCodec) Marshal(v any) ([]byte, error)      { return cbor.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

var (
	JSON Codec = jsonCodec{}
	CBOR Codec = cborCodec{}
)

// CodecFor picks the codec for a content type. Anything that is not CBOR
// is treated as JSON, which is what every existing producer sends.
func CodecFor(contentType string) Codec {
	mediaType, _, _ := strings.Cut(contentType, ";")
	if strings.EqualFold(strings.TrimSpace(mediaType), ContentTypeCBOR) {
		return CBOR
	}
	return JSON
}

// Encode turns a payload into message bytes. Raw bytes pass through
// untouched; everything else goes through the codec for contentType.
func Encode(payload any, contentType string) ([]byte, string, error) {
	switch p := payload.(type) {
	case []byte:
		if contentType == "" {
			contentType = ContentTypeBinary
		}
		return p, contentType, nil
	case json.RawMessage:
		return p, ContentTypeJSON, nil
	}

	codec := CodecFor(contentType)
	body, err := codec.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("broker: encode %s: %w", codec.ContentType(), err)
	}
	return body, codec.ContentType(), nil
}

// Decode unmarshals a message body into v using the message content type.
func Decode(msg Message, v any) error {
	if err := CodecFor(msg.ContentType).Unmarshal(msg.Body, v); err != nil {
		return fmt.Errorf("broker: decode %s: %w", msg.RoutingKey, err)
	}
	return nil
}

// Typed adapts a handler for a concrete payload type. Payloads that fail
// to decode count as handler failures.
func Typed[T any](fn func(ctx context.Context, payload T, msg Message) error) Handler {
	return func(ctx context.Context, msg Message) error {
		var payload T
		if err := Decode(msg, &payload); err != nil {
			return err
		}
		return fn(ctx, payload, msg)
	}
}

package broker_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swiftlogistics/platform/pkg/broker"
)

type payload struct {
	UserID string `json:"userId" cbor:"userId"`
	Count  int    `json:"count" cbor:"count"`
}

func TestEncode(t *testing.T) {
	t.Run("json by default", func(t *testing.T) {
		body, ct, err := broker.Encode(payload{UserID: "u1", Count: 2}, "")
		require.NoError(t, err)
		require.Equal(t, broker.ContentTypeJSON, ct)
		require.JSONEq(t, `{"userId":"u1","count":2}`, string(body))
	})

	t.Run("raw bytes pass through", func(t *testing.T) {
		body, ct, err := broker.Encode([]byte("hello"), "")
		require.NoError(t, err)
		require.Equal(t, "hello", string(body))
		require.Equal(t, broker.ContentTypeBinary, ct)
	})

	t.Run("raw bytes keep an explicit content type", func(t *testing.T) {
		_, ct, err := broker.Encode([]byte(`{}`), broker.ContentTypeJSON)
		require.NoError(t, err)
		require.Equal(t, broker.ContentTypeJSON, ct)
	})

	t.Run("raw json", func(t *testing.T) {
		body, ct, err := broker.Encode(json.RawMessage(`{"a":1}`), "")
		require.NoError(t, err)
		require.Equal(t, broker.ContentTypeJSON, ct)
		require.Equal(t, `{"a":1}`, string(body))
	})

	t.Run("unencodable payload", func(t *testing.T) {
		_, _, err := broker.Encode(make(chan int), "")
		require.Error(t, err)
	})
}

func TestCodecFor(t *testing.T) {
	require.Equal(t, broker.CBOR, broker.CodecFor("application/cbor"))
	require.Equal(t, broker.CBOR, broker.CodecFor("Application/CBOR; charset=binary"))
	require.Equal(t, broker.JSON, broker.CodecFor("application/json"))
	require.Equal(t, broker.JSON, broker.CodecFor(""))
}

func TestTypedDecodesBothCodecs(t *testing.T) {
	want := payload{UserID: "u1", Count: 3}

	for _, ct := range []string{broker.ContentTypeJSON, broker.ContentTypeCBOR} {
		t.Run(ct, func(t *testing.T) {
			body, gotCT, err := broker.Encode(want, ct)
			require.NoError(t, err)
			require.Equal(t, ct, gotCT)

			var got payload
			h := broker.Typed(func(_ context.Context, p payload, _ broker.Message) error {
				got = p
				return nil
			})
			require.NoError(t, h(context.Background(), broker.Message{ContentType: gotCT, Body: body}))
			require.Equal(t, want, got)
		})
	}

	t.Run("garbage fails the handler", func(t *testing.T) {
		called := false
		h := broker.Typed(func(context.Context, payload, broker.Message) error {
			called = true
			return nil
		})
		err := h(context.Background(), broker.Message{ContentType: broker.ContentTypeJSON, Body: []byte("{")})
		require.Error(t, err)
		require.False(t, called)
	})
}

package broker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swiftlogistics/platform/pkg/broker"
)

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"order.created", "order.created", true},
		{"order.created", "order.updated", false},
		{"order.*", "order.created", true},
		{"order.*", "order", false},
		{"order.*", "order.created.v2", false},
		{"*.created", "order.created", true},
		{"order.#", "order", true},
		{"order.#", "order.created.v2", true},
		{"#", "anything.at.all", true},
		{"#", "", true},
		{"#.created", "created", true},
		{"#.created", "order.v2.created", true},
		{"#.created", "order.updated", false},
		{"notification.*", "notification.email", true},
		{"audit.*", "notification.email", false},
		{"a.#.z", "a.z", true},
		{"a.#.z", "a.b.c.z", true},
		{"a.#.#.z", "a.b.z", true},
		{"a.*.#", "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.key, func(t *testing.T) {
			require.Equal(t, tt.want, broker.MatchTopic(tt.pattern, tt.key))
		})
	}
}

func TestRoutes(t *testing.T) {
	require.True(t, broker.Routes(broker.Fanout, "ignored", "user.login"))
	require.True(t, broker.Routes(broker.Direct, "user.login", "user.login"))
	require.False(t, broker.Routes(broker.Direct, "user.*", "user.login"))
	require.True(t, broker.Routes(broker.Topic, "user.*", "user.login"))
}

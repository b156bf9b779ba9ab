package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	cases := []State{
		{},
		{IsSync: false, Nonce: "n1"},
		{Subject: "google_108234", Email: "dave@example.com", IsSync: true, Nonce: "n2"},
		{Subject: "ldap_alice", Email: "alice@example.com", IsSync: true},
	}

	for _, want := range cases {
		encoded, err := EncodeState(want)
		require.NoError(t, err)

		got, err := DecodeState(encoded)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDecodeState_Invalid(t *testing.T) {
	_, err := DecodeState("!!not-base64!!")
	assert.Error(t, err)

	_, err = DecodeState("bm90LWpzb24") // "not-json"
	assert.Error(t, err)
}

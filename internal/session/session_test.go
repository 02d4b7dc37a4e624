package session

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/fpconsole/internal/models"
)

func TestDecode(t *testing.T) {
	sess, ok := Decode([]byte(` {"id":3,"username":"dave","profile":{"role":"admin"}}`))
	require.True(t, ok)
	require.True(t, sess.IsAdmin())
	require.Equal(t, "dave", sess.Username())

	sess, ok = Decode([]byte(`{"username":"erin"}`))
	require.True(t, ok)
	require.True(t, sess.IsAuthenticated())
	require.False(t, sess.IsAdmin())

	for _, bad := range []string{``, `null`, `"alice"`, `{`, `{}`} {
		_, ok := Decode([]byte(bad))
		require.False(t, ok, bad)
	}
}

func TestEncode(t *testing.T) {
	_, err := Encode(Anonymous())
	require.Error(t, err)

	data, err := Encode(&Session{User: &models.User{Username: "frank", Profile: &models.Profile{Role: models.RoleUser}}})
	require.NoError(t, err)

	sess, ok := Decode(data)
	require.True(t, ok)
	require.Equal(t, models.RoleUser, sess.User.Role())
}

func TestSession_NilSafe(t *testing.T) {
	var s *Session
	require.False(t, s.IsAuthenticated())
	require.False(t, s.IsAdmin())
	require.Empty(t, s.Username())
}

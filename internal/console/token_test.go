package console

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestWorkspaceToken(t *testing.T) {
	tok := workspaceToken{secret: testSecret, ttl: time.Hour}
	id := uuid.Must(uuid.NewV7())
	now := time.Now().Truncate(time.Second)

	signed, err := tok.Issue(id, now)
	require.NoError(t, err)

	gotID, issuedAt, err := tok.Parse(signed)
	require.NoError(t, err)
	require.Equal(t, id, gotID)
	require.True(t, issuedAt.Equal(now))

	other := workspaceToken{secret: []byte("another-secret-key-min-32-bytes-long"), ttl: time.Hour}
	_, _, err = other.Parse(signed)
	require.Error(t, err)

	expired, err := tok.Issue(id, now.Add(-2*time.Hour))
	require.NoError(t, err)
	_, _, err = tok.Parse(expired)
	require.Error(t, err)

	_, _, err = tok.Parse("not-a-token")
	require.Error(t, err)
}

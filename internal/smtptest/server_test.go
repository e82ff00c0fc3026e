package smtptest

import (
	"strings"
	"testing"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = "Subject: hi\r\n\r\nbody\r\n"

func TestServer_StoresEnvelope(t *testing.T) {
	t.Parallel()

	srv, err := NewServer()
	require.NoError(t, err)
	defer srv.Close()

	err = smtp.SendMail(srv.Address(), nil, "from@x.com", []string{"a@x.com", "b@x.com"}, strings.NewReader(payload))
	require.NoError(t, err)

	got := srv.RetrieveEmails()
	require.Len(t, got, 1)
	assert.Equal(t, "from@x.com", got[0].From)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, got[0].To)
	assert.Equal(t, strings.ReplaceAll(payload, "\r\n", "\n"), strings.ReplaceAll(got[0].Data, "\r\n", "\n"))
	assert.Empty(t, got[0].Username)
	assert.False(t, got[0].Received.IsZero())
}

func TestServer_Credentials(t *testing.T) {
	t.Parallel()

	srv, err := NewServer(WithCredentials("user", "pass"))
	require.NoError(t, err)
	defer srv.Close()

	bad := sasl.NewPlainClient("", "user", "nope")
	assert.Error(t, smtp.SendMail(srv.Address(), bad, "from@x.com", []string{"a@x.com"}, strings.NewReader(payload)))
	assert.Error(t, smtp.SendMail(srv.Address(), nil, "from@x.com", []string{"a@x.com"}, strings.NewReader(payload)))

	good := sasl.NewPlainClient("", "user", "pass")
	require.NoError(t, smtp.SendMail(srv.Address(), good, "from@x.com", []string{"a@x.com"}, strings.NewReader(payload)))

	got := srv.RetrieveEmails()
	require.Len(t, got, 1)
	assert.Equal(t, "user", got[0].Username)
}

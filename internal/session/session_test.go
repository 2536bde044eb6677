package session

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggedIn(t *testing.T) {
	cases := map[string]bool{
		"https://www.linkedin.com/feed/":                    true,
		"https://www.linkedin.com/in/alice/":                true,
		"https://www.linkedin.com/checkpoint/challenge/abc": false,
		"https://www.linkedin.com/login?fromSignIn=true":    false,
		"":                                                  false,
	}
	for url, want := range cases {
		assert.Equal(t, want, LoggedIn(url), url)
	}
}

func TestLoginMissingCredentials(t *testing.T) {
	err := Login(context.Background(), Credentials{Email: "a@b.c"}, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredentials))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestCredentialsComplete(t *testing.T) {
	assert.True(t, Credentials{Email: "a@b.c", Password: "pw"}.Complete())
	assert.False(t, Credentials{Email: "  ", Password: "pw"}.Complete())
	assert.False(t, Credentials{Email: "a@b.c"}.Complete())
}

func TestCookies(t *testing.T) {
	assert.Nil(t, Cookies("  "))

	cookies := Cookies(" tok ")
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].Secure)
}

func TestTypingPause(t *testing.T) {
	for i := 0; i < 20; i++ {
		d := typingPause()
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 2*time.Second)
	}
}

package captcha_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/wiki-contributions/internal/infrastructure/captcha"
)

func TestValidate_SuccessCarriesScore(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "shh", r.PostForm.Get("secret"))
		assert.Equal(t, "tok", r.PostForm.Get("response"))
		assert.Equal(t, "203.0.113.9", r.PostForm.Get("remoteip"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"score":0.9,"action":"submit"}`))
	}))
	defer ts.Close()

	c := captcha.NewClient(captcha.Config{Secret: "shh", VerifyURL: ts.URL}, nil)
	res := c.Validate(context.Background(), "tok", "203.0.113.9")
	require.True(t, res.Accepted)
	require.InDelta(t, 0.9, res.Score, 1e-9)
}

func TestValidate_FailsClosed(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"provider says no": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"score":0.9,"error-codes":["invalid-input-response"]}`))
		},
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"garbage body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
		"hung provider": func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write([]byte(`{"success":true,"score":1}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(h)
			defer ts.Close()
			c := captcha.NewClient(captcha.Config{Secret: "shh", VerifyURL: ts.URL, Timeout: 100 * time.Millisecond}, nil)
			res := c.Validate(context.Background(), "tok", "")
			require.False(t, res.Accepted)
			require.Zero(t, res.Score)
		})
	}
}

func TestValidate_EmptyTokenRejectedWithoutCall(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer ts.Close()
	c := captcha.NewClient(captcha.Config{Secret: "shh", VerifyURL: ts.URL}, nil)
	require.False(t, c.Validate(context.Background(), "", "").Accepted)
	require.False(t, called)
}

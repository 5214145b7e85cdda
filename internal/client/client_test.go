package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "nftgate/internal/errors"
	"nftgate/internal/license"
	"nftgate/internal/oracle"
	"nftgate/internal/shared/testutil"
	handlers "nftgate/internal/transport/http"
)

func newServer(t *testing.T, o license.OwnershipOracle) *httptest.Server {
	t.Helper()

	logger, _ := testutil.NewCaptureLogger()
	licenser, err := license.NewLicenser(o, license.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(licenser.Close)

	h := handlers.NewLicenseHandler(licenser, apierrors.NewErrorHandler(logger, false), logger)
	r := chi.NewRouter()
	r.Mount("/api/license", h.Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewSigner(key)
}

func TestSignerFromHex(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := hexutil.Encode(crypto.FromECDSA(key))

	s, err := SignerFromHex(hexKey)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), s.Address())

	_, err = SignerFromHex("not-a-key")
	assert.Error(t, err)
}

func TestSignerMatchesVerifier(t *testing.T) {
	s := newSigner(t)
	sig, err := s.SignPersonal("hello\nnonce")
	require.NoError(t, err)

	assert.True(t, license.NewVerifier().Verify("hello\nnonce", sig, s.Address()))
	assert.False(t, license.NewVerifier().Verify("hello\nother", sig, s.Address()))
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("licensed wallet", func(t *testing.T) {
		c := New(newServer(t, oracle.NewStatic(true)).URL)
		valid, err := c.Authenticate(ctx, newSigner(t))
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("wallet without token", func(t *testing.T) {
		c := New(newServer(t, oracle.NewStatic(false)).URL)
		valid, err := c.Authenticate(ctx, newSigner(t))
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("oracle outage", func(t *testing.T) {
		c := New(newServer(t, oracle.NewFailing(errors.New("upstream down"))).URL)
		valid, err := c.Authenticate(ctx, newSigner(t))
		require.Error(t, err)
		assert.False(t, valid)
		assert.ErrorIs(t, err, ErrOracleUnavailable)

		var perr *ProblemError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, http.StatusServiceUnavailable, perr.Problem.Status)
	})
}

func TestVerify_ReplayRejected(t *testing.T) {
	ctx := context.Background()
	c := New(newServer(t, oracle.NewStatic(true)).URL)
	s := newSigner(t)

	challenge, err := c.Challenge(ctx)
	require.NoError(t, err)
	sig, err := s.SignPersonal(challenge.Message)
	require.NoError(t, err)

	response := license.LicensingResponse{
		RequestID:     challenge.ID,
		PublicAddress: s.Address(),
		AnswerMessage: sig,
	}

	valid, err := c.Verify(ctx, response)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = c.Verify(ctx, response)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestProblemErrorFromNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	logger, logs := testutil.NewCaptureLogger()
	_, err := New(srv.URL, WithLogger(logger)).Challenge(context.Background())
	var perr *ProblemError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusBadGateway, perr.Problem.Status)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), perr.Problem.Title)
	assert.NotErrorIs(t, err, ErrOracleUnavailable)

	logs.RequireLogged(t, "problem body not decodable", map[string]any{
		"path":         "/api/license/challenge",
		"content_type": "text/plain; charset=utf-8",
	})
}

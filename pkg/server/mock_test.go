package server

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"log/slog"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/raterudder/energydash/pkg/display"
	"github.com/raterudder/energydash/pkg/log"
	"github.com/raterudder/energydash/pkg/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

const (
	testIssuer   = "https://issuer.example.com"
	testAudience = "test-audience"
)

type mockToggle struct {
	mock.Mock
}

func (m *mockToggle) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *mockToggle) SetEnabled(enabled bool) {
	m.Called(enabled)
}

func (m *mockToggle) LastSample() (float64, bool) {
	args := m.Called()
	return args.Get(0).(float64), args.Bool(1)
}

func newTestServer(toggle Poller) (*Server, *display.State) {
	state := display.NewState(types.DefaultGauge(), time.Minute)
	srv := New(toggle, state, ":0")
	return srv, state
}

// withTestAuth configures srv to accept tokens signed by the returned key.
func withTestAuth(t *testing.T, srv *Server, admins ...string) *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	srv.verifier = oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: testAudience}).Verify
	srv.oidcAudience = testAudience
	srv.adminEmails = admins
	return key
}

func signTestToken(t *testing.T, key *rsa.PrivateKey, audience string, extra map[string]any) string {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)
	now := time.Now()
	token, err := jwt.Signed(signer).Claims(jwt.Claims{
		Issuer:   testIssuer,
		Subject:  "1234",
		Audience: jwt.Audience{audience},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(time.Hour)),
	}).Claims(extra).Serialize()
	require.NoError(t, err)
	return token
}

package frontend

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/backend"
)

// registerFakeSession adds a Session with the given key data and fake
// backend to the server's cancellation registry, as handle() would.
func registerFakeSession(t *testing.T, srv *Server, id, secret uint32) *backend.Fake {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })

	fake := backend.NewFake()
	sess := NewSession(id, secret, serverConn, srv.cfg, srv.logger)
	sess.be = fake

	srv.mu.Lock()
	srv.sessions[id] = sess
	srv.mu.Unlock()
	return fake
}

func TestRouteCancelMatchesIDAndSecret(t *testing.T) {
	srv := NewServer(testConfig(), discardLogger(), nil)
	target := registerFakeSession(t, srv, 1, 111)
	other := registerFakeSession(t, srv, 2, 222)

	srv.routeCancel(1, 111)

	assert.True(t, target.Canceled, "matching (id, secret) must cancel the target")
	assert.False(t, other.Canceled, "other connections must be unaffected")
}

func TestRouteCancelIgnoresWrongSecret(t *testing.T) {
	srv := NewServer(testConfig(), discardLogger(), nil)
	target := registerFakeSession(t, srv, 1, 111)

	srv.routeCancel(1, 999)
	assert.False(t, target.Canceled, "mismatched secret must be silently ignored")
}

func TestRouteCancelIgnoresUnknownID(t *testing.T) {
	srv := NewServer(testConfig(), discardLogger(), nil)
	target := registerFakeSession(t, srv, 1, 111)

	srv.routeCancel(77, 111)
	assert.False(t, target.Canceled)
}

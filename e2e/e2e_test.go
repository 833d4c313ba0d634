package e2e_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubledger/objectgate"
	"github.com/clubledger/objectgate/client"
)

func newClient(t *testing.T, baseURL, token string) *client.Client {
	t.Helper()
	c, err := client.New(&client.Config{Endpoint: baseURL, Token: token})
	require.NoError(t, err)
	return c
}

func download(t *testing.T, c *client.Client, objectPath string) (*client.DownloadResult, []byte, error) {
	t.Helper()
	res, body, err := c.Download(context.Background(), objectPath)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	return res, data, nil
}

// TestE2E_RemoteObjects_SQLite runs the remote object lifecycle on SQLite.
func TestE2E_RemoteObjects_SQLite(t *testing.T) {
	stowrySrv := newFakeStowry(t)

	baseURL, cleanup := startServer(t, ServerConfig{
		Port:           getOpenPort(t),
		DBType:         "sqlite",
		DBDSN:          filepath.Join(t.TempDir(), "objectgate.db"),
		LocalDir:       t.TempDir(),
		StorageDriver:  "stowry",
		BrokerDriver:   "stowry",
		StowryEndpoint: stowrySrv.URL,
	})
	defer cleanup()

	runRemoteObjectTests(t, baseURL, stowrySrv)
}

// TestE2E_RemoteObjects_Postgres runs the remote object lifecycle on PostgreSQL.
func TestE2E_RemoteObjects_Postgres(t *testing.T) {
	dsn := getSharedPostgresDatabase(t)
	resetPostgres(t)
	stowrySrv := newFakeStowry(t)

	baseURL, cleanup := startServer(t, ServerConfig{
		Port:           getOpenPort(t),
		DBType:         "postgres",
		DBDSN:          dsn,
		LocalDir:       t.TempDir(),
		StorageDriver:  "stowry",
		BrokerDriver:   "stowry",
		StowryEndpoint: stowrySrv.URL,
	})
	defer cleanup()

	runRemoteObjectTests(t, baseURL, stowrySrv)
}

// runRemoteObjectTests holds the shared remote object scenarios.
func runRemoteObjectTests(t *testing.T, baseURL string, stowrySrv *fakeStowry) {
	t.Helper()
	ctx := context.Background()

	alice := newClient(t, baseURL, issueToken(t, "alice"))
	bob := newClient(t, baseURL, issueToken(t, "bob", "treasurers"))
	carol := newClient(t, baseURL, issueToken(t, "carol"))

	content := []byte("receipt scan bytes")
	var objectPath string

	t.Run("upload goes straight to the object store", func(t *testing.T) {
		target, err := alice.IssueUpload(ctx)
		require.NoError(t, err)
		assert.Equal(t, objectgate.ModeRemote, target.Mode)
		assert.Equal(t, http.MethodPut, target.Method)
		assert.True(t, strings.HasPrefix(target.URL, stowrySrv.URL+testPrivateDir+"/uploads/"), target.URL)

		before := stowrySrv.count()
		localPath, err := alice.Put(ctx, target, "image/png", bytes.NewReader(content), int64(len(content)))
		require.NoError(t, err)
		assert.Empty(t, localPath)
		assert.Equal(t, before+1, stowrySrv.count())

		objectPath, err = alice.SetProfileImage(ctx, target.URL)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(objectPath, objectgate.ObjectsPrefix+"uploads/"), objectPath)
	})

	t.Run("owner reads the profile image", func(t *testing.T) {
		res, data, err := download(t, alice, objectPath)
		require.NoError(t, err)
		assert.Equal(t, content, data)
		assert.Equal(t, "image/png", res.ContentType)
		assert.Contains(t, res.CacheControl, "public")
	})

	t.Run("profile images are public to other users", func(t *testing.T) {
		_, data, err := download(t, carol, objectPath)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("policy reports owner and visibility", func(t *testing.T) {
		policy, err := alice.Policy(ctx, objectPath)
		require.NoError(t, err)
		assert.Equal(t, "alice", policy.Owner)
		assert.Equal(t, objectgate.VisibilityPublic, policy.Visibility)
	})

	t.Run("private objects deny other users", func(t *testing.T) {
		require.NoError(t, alice.SetPolicy(ctx, objectPath, objectgate.VisibilityPrivate, nil))

		_, _, err := download(t, carol, objectPath)
		require.Error(t, err)
		assert.ErrorIs(t, err, objectgate.ErrUnauthorized)

		res, data, err := download(t, alice, objectPath)
		require.NoError(t, err)
		assert.Equal(t, content, data)
		assert.Contains(t, res.CacheControl, "private")
	})

	t.Run("non-owner cannot change the policy", func(t *testing.T) {
		err := carol.SetPolicy(ctx, objectPath, objectgate.VisibilityPublic, nil)
		assert.ErrorIs(t, err, objectgate.ErrUnauthorized)
	})

	t.Run("non-owner cannot claim the object as a profile image", func(t *testing.T) {
		_, err := carol.SetProfileImage(ctx, objectPath)
		assert.ErrorIs(t, err, objectgate.ErrUnauthorized)

		policy, err := alice.Policy(ctx, objectPath)
		require.NoError(t, err)
		assert.Equal(t, "alice", policy.Owner)
	})

	t.Run("group rule grants read", func(t *testing.T) {
		rules := []objectgate.AclRule{{
			PrincipalType: objectgate.PrincipalGroup,
			PrincipalID:   "treasurers",
			Permission:    objectgate.PermissionRead,
		}}
		require.NoError(t, alice.SetPolicy(ctx, objectPath, objectgate.VisibilityPrivate, rules))

		_, data, err := download(t, bob, objectPath)
		require.NoError(t, err)
		assert.Equal(t, content, data)

		_, _, err = download(t, carol, objectPath)
		assert.ErrorIs(t, err, objectgate.ErrUnauthorized)
	})

	t.Run("download url points at the object store", func(t *testing.T) {
		signed, err := alice.DownloadURL(ctx, objectPath)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(signed, stowrySrv.URL+testPrivateDir+"/"), signed)

		resp, err := http.Get(signed)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("missing object is not found", func(t *testing.T) {
		_, _, err := download(t, alice, objectgate.ObjectsPrefix+"uploads/00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, objectgate.ErrObjectNotFound)
	})

	t.Run("requests without a token are rejected", func(t *testing.T) {
		anonymous := newClient(t, baseURL, "")

		_, err := anonymous.IssueUpload(ctx)
		assert.ErrorIs(t, err, objectgate.ErrUnauthorized)

		_, _, err = download(t, anonymous, objectPath)
		assert.ErrorIs(t, err, objectgate.ErrUnauthorized)
	})

	t.Run("public objects are served from the search paths", func(t *testing.T) {
		stowrySrv.put(testPublicDir+"/club-logo.svg", "image/svg+xml", []byte("<svg/>"))

		resp, err := http.Get(baseURL + "/public-objects/club-logo.svg")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Cache-Control"), "public")

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "<svg/>", string(data))
	})

	t.Run("public miss renders a not found page", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/public-objects/missing.svg")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(data), "404 Not Found")
	})
}

// TestE2E_LocalFallback covers uploads while the credential broker is down
// and rebuilding the local index after the database is lost.
func TestE2E_LocalFallback(t *testing.T) {
	ctx := context.Background()
	port := getOpenPort(t)
	dbPath := filepath.Join(t.TempDir(), "objectgate.db")

	cfg := ServerConfig{
		Port:           port,
		DBType:         "sqlite",
		DBDSN:          dbPath,
		LocalDir:       t.TempDir(),
		BrokerDriver:   "sidecar",
		BrokerEndpoint: "http://127.0.0.1:" + strconv.Itoa(getOpenPort(t)),
	}
	configPath := createConfigFile(t, cfg)
	runCommand(t, configPath, "migrate")

	baseURL, cleanup := startConfiguredServer(t, configPath, port)

	alice := newClient(t, baseURL, issueToken(t, "alice"))
	content := []byte("minutes of the annual general meeting")

	target, err := alice.IssueUpload(ctx)
	require.NoError(t, err)
	assert.Equal(t, objectgate.ModeLocalFallback, target.Mode)
	assert.True(t, strings.HasPrefix(target.URL, objectgate.LocalUploadTargetPrefix), target.URL)

	objectPath, err := alice.Put(ctx, target, "text/plain", bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, objectgate.LocalUploadsPrefix+target.ID, objectPath)

	t.Run("local ids cannot be overwritten", func(t *testing.T) {
		mallory := newClient(t, baseURL, issueToken(t, "mallory"))
		forged := []byte("replaced")

		_, err := mallory.Put(ctx, target, "text/plain", bytes.NewReader(forged), int64(len(forged)))
		assert.ErrorIs(t, err, objectgate.ErrObjectExists)
	})

	finalized, err := alice.SetProfileImage(ctx, target.URL)
	require.NoError(t, err)
	assert.Equal(t, objectPath, finalized)

	readLocal := func(t *testing.T) {
		t.Helper()
		resp, err := http.Get(baseURL + objectPath)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	}

	t.Run("local objects are readable without a token", readLocal)

	cleanup()

	t.Run("reindex restores the catalogue", func(t *testing.T) {
		require.NoError(t, os.Remove(dbPath))
		runCommand(t, configPath, "migrate")
		runCommand(t, configPath, "reindex")

		_, stop := startConfiguredServer(t, configPath, port)
		defer stop()

		readLocal(t)
	})
}

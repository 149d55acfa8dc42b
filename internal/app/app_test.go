package app

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"

	"github.com/gluk-w/sshagent/internal/keys"
	"github.com/gluk-w/sshagent/internal/sshkeys"
)

type testEnv struct {
	dir     string
	keyFile string
	signer  ssh.Signer
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SSHAGENT_DATA_PATH", filepath.Join(dir, "data"))
	t.Setenv("SSHAGENT_DATABASE_PATH", "")
	t.Setenv("SSHAGENT_LOG_PATH", filepath.Join(dir, "data", "agent.log"))
	t.Setenv("SSHAGENT_LOG_LEVEL", "debug")
	t.Setenv("SSHAGENT_LOG_FORMAT", "text")
	t.Setenv("SSHAGENT_PASSPHRASE", "")

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	keyFile := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(block), 0600))

	return &testEnv{dir: dir, keyFile: keyFile, signer: signer}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := New("test")
	a.Writer = &out
	a.ErrWriter = &out
	err := a.Run(append([]string{"sshagent-keys"}, args...))
	return out.String(), err
}

func addKey(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, append([]string{CommandAdd}, args...)...)
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 3)
	return fields[0]
}

func TestInspect(t *testing.T) {
	env := setup(t)
	out, err := run(t, CommandInspect, env.keyFile)
	require.NoError(t, err)

	var got inspection
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, env.keyFile, got.File)
	assert.Equal(t, keys.KeyTypeEd25519, got.KeyType)
	assert.Equal(t, ssh.FingerprintSHA256(env.signer.PublicKey()), got.Fingerprint)
	assert.Equal(t, 4+11+4+32+4+64, got.WireLength)
	assert.Equal(t, string(ssh.MarshalAuthorizedKey(env.signer.PublicKey())), got.AuthorizedKey)
}

func TestInspect_Errors(t *testing.T) {
	env := setup(t)

	_, err := run(t, CommandInspect)
	assert.ErrorIs(t, err, errUsage)

	_, err = run(t, CommandInspect, filepath.Join(env.dir, "missing"))
	assert.ErrorContains(t, err, "read private key")

	garbage := filepath.Join(env.dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("not a key"), 0600))
	_, err = run(t, CommandInspect, garbage)
	assert.ErrorContains(t, err, "parse private key")
}

func TestInspect_Encrypted(t *testing.T) {
	env := setup(t)
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("secret"))
	require.NoError(t, err)
	file := filepath.Join(env.dir, "id_encrypted")
	require.NoError(t, os.WriteFile(file, pem.EncodeToMemory(block), 0600))

	_, err = run(t, CommandInspect, file)
	assert.ErrorContains(t, err, "is encrypted")

	out, err := run(t, CommandInspect, "--"+FlagPassphrase, "secret", file)
	require.NoError(t, err)
	assert.Contains(t, out, keys.KeyTypeEd25519)
}

func TestParseWithPassphrase_WipesPassphrase(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("secret"))
	require.NoError(t, err)
	data := pem.EncodeToMemory(block)

	pass := []byte("secret")
	k, err := parseWithPassphrase(data, pass)
	require.NoError(t, err)
	defer k.Destroy()
	assert.Equal(t, make([]byte, len("secret")), pass)

	wrong := []byte("wrong")
	_, err = parseWithPassphrase(data, wrong)
	assert.Error(t, err)
	assert.Equal(t, make([]byte, len("wrong")), wrong)
}

func TestAddListPublicRemove(t *testing.T) {
	env := setup(t)
	id := addKey(t, "--"+FlagComment, "work laptop", env.keyFile)

	out, err := run(t, CommandList)
	require.NoError(t, err)
	assert.Contains(t, out, "FINGERPRINT")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "work laptop")

	out, err = run(t, CommandList, "--"+FlagOutput, OutputYAML)
	require.NoError(t, err)
	var listed []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, id, listed[0]["id"])
	assert.Equal(t, keys.KeyTypeEd25519, listed[0]["key_type"])
	assert.NotContains(t, listed[0], "private_token")

	out, err = run(t, CommandPublic, id)
	require.NoError(t, err)
	pub, comment, err := sshkeys.ParseAuthorizedKey([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "work laptop", comment)
	assert.Equal(t, env.signer.PublicKey().Marshal(), keys.EncodePublicKey(pub))

	out, err = run(t, CommandRemove, id)
	require.NoError(t, err)
	assert.Equal(t, "removed "+id+"\n", out)

	_, err = run(t, CommandPublic, id)
	assert.ErrorContains(t, err, "identity not found")
}

func TestAdd_DefaultCommentAndDuplicate(t *testing.T) {
	env := setup(t)
	id := addKey(t, env.keyFile)

	out, err := run(t, CommandPublic, id)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, " id_ed25519\n"))

	_, err = run(t, CommandAdd, env.keyFile)
	assert.ErrorContains(t, err, "already stored")
}

func TestExport(t *testing.T) {
	env := setup(t)
	id := addKey(t, env.keyFile)

	out, err := run(t, CommandExport, id)
	require.NoError(t, err)

	exported, err := sshkeys.ParsePrivateKeyPEM([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, env.signer.PublicKey().Marshal(), keys.EncodePublicKey(keys.Project(exported)))
}

func TestRemoveAll(t *testing.T) {
	env := setup(t)
	addKey(t, env.keyFile)

	_, err := run(t, CommandRemove, "--"+FlagAll, "extra")
	assert.ErrorContains(t, err, "takes no arguments")

	out, err := run(t, CommandRemove, "--"+FlagAll)
	require.NoError(t, err)
	assert.Equal(t, "removed 1 identities\n", out)

	_, err = run(t, CommandRemove)
	assert.ErrorIs(t, err, errUsage)
}

func TestList_UnknownOutput(t *testing.T) {
	setup(t)
	_, err := run(t, CommandList, "--"+FlagOutput, "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestLogs(t *testing.T) {
	env := setup(t)
	addKey(t, "--"+FlagComment, "logged", env.keyFile)

	out, err := run(t, CommandLogs, "--"+FlagLines, "20")
	require.NoError(t, err)
	assert.Contains(t, out, "identity added")
}

func TestLogs_FileLoggingOff(t *testing.T) {
	setup(t)
	t.Setenv("SSHAGENT_LOG_PATH", "")

	_, err := run(t, CommandLogs)
	assert.ErrorContains(t, err, "file logging is disabled")
}

func TestGlobalLogFlags(t *testing.T) {
	env := setup(t)
	_, err := run(t, "--"+FlagLogLevel, "loud", CommandInspect, env.keyFile)
	assert.ErrorContains(t, err, "unknown log level")

	_, err = run(t, "--"+FlagLogFormat, "json", CommandInspect, env.keyFile)
	assert.NoError(t, err)
}

func TestServe(t *testing.T) {
	env := setup(t)
	id := addKey(t, env.keyFile)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	a := New("test")
	a.Writer = io.Discard
	done := make(chan error, 1)
	go func() { done <- a.RunContext(ctx, []string{"sshagent-keys", CommandServe, "--" + FlagListen, addr}) }()

	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/v1/identities/" + id + "/public")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ = io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, string(body), "ssh-ed25519 ")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop")
	}
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/remiblancher/pqhybrid/internal/audit"
)

// executeCommand executes a Cobra command with the given args and returns output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	resetFlags()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err = root.Execute()
	if err != nil {
		// PersistentPostRunE does not run after a failed command.
		_ = audit.Close()
	}
	return buf.String(), err
}

// resetFlags restores every command flag variable to its default, since
// pflag only applies defaults at definition time.
func resetFlags() {
	configPath, auditLogPath, logLevel, logFormat = "", "", "", ""

	algsJSON, algsType, algsHybrid = false, "", false

	keyGenAlgorithm, keyGenOutput, keyGenPubOutput = "", "", ""
	keyPubKey, keyPubOut = "", ""

	signKey, signIn, signOut, signContext, signBase64 = "", "-", "-", "", false
	verifyKey, verifyIn, verifySig, verifyContext, verifyBase64 = "", "-", "", "", false

	kemEncapsKey, kemEncapsCTOut, kemEncapsSSOut = "", "", ""
	kemDecapsKey, kemDecapsIn, kemDecapsOut = "", "-", ""

	coseSignType, coseSignKey, coseSignIn, coseSignOut = "sign1", "", "-", "-"
	coseSignContentType, coseSignIssuer, coseSignSubject, coseSignAudience = "", "", "", ""
	coseSignExpiration = 0
	coseVerifyKey = ""

	auditLogFile, auditTailNum, auditShowJSON = "", 10, false

	servePort, serveHost, serveMaxKeys, serveNoMetrics, serveDefaultAlg = 0, "", 0, false, ""
}

// testContext holds test resources.
type testContext struct {
	t       *testing.T
	tempDir string
}

// newTestContext creates a new test context with a temp directory.
func newTestContext(t *testing.T) *testContext {
	t.Helper()
	return &testContext{t: t, tempDir: t.TempDir()}
}

// path returns a path within the temp directory.
func (tc *testContext) path(name string) string {
	return filepath.Join(tc.tempDir, name)
}

// writeFile writes content to a file in the temp directory.
func (tc *testContext) writeFile(name, content string) string {
	tc.t.Helper()
	path := tc.path(name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		tc.t.Fatalf("Failed to write file %s: %v", name, err)
	}
	return path
}

// genKey runs "key gen" and returns the private and public key paths.
func (tc *testContext) genKey(alg, name string) (priv, pub string) {
	tc.t.Helper()
	priv, pub = tc.path(name+".key"), tc.path(name+".pub")
	if out, err := executeCommand(rootCmd, "key", "gen", "--algorithm", alg, "--out", priv, "--pub-out", pub); err != nil {
		tc.t.Fatalf("key gen %s failed: %v\n%s", alg, err, out)
	}
	return priv, pub
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file %s to exist: %v", path, err)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return data
}

package cryptodocs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/require"
)

// testConfig is the cryptosystems configuration without network access.
func testConfig() Config {
	conf := Cryptosystems()

	conf.IntersphinxMapping = map[string]IntersphinxTarget{}
	conf.HTMLLogo = ""

	return conf
}

func testOptions(t *testing.T, sourceDir string) BuildOptions {
	t.Helper()

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil

	return BuildOptions{
		SourceDir:  sourceDir,
		OutDir:     filepath.Join(t.TempDir(), "out"),
		SearchPath: &SearchPath{},
		HTTPClient: client,
		Workers:    2,
	}
}

// writeFiles creates the files under dir, names are slash separated.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))

		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o770))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func readFile(t *testing.T, name string) string {
	t.Helper()

	data, err := os.ReadFile(name)
	require.NoError(t, err)

	return string(data)
}

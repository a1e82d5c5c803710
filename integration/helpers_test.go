//go:build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	nethttp "net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	kzip "github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/rangezip"
	zhttp "github.com/meigma/rangezip/http"
	"github.com/meigma/rangezip/internal/testutil"
)

// Fixture archives served by the container.
const (
	mixedArchive  = "mixed.zip"
	largeArchive  = "large.zip"
	prefixArchive = "prefixed.zip"
)

// largeContent is the single entry of largeArchive.
var largeContent = func() []byte {
	r := rand.New(rand.NewPCG(1, 2)) //nolint:gosec // deterministic fixture data
	out := make([]byte, 3<<20)
	for i := range out {
		out[i] = byte(r.IntN(16))
	}
	return out
}()

// --- Server Container Setup ---

var (
	serverOnce sync.Once
	serverURL  string
	serverErr  error
)

// getServer returns the base URL of the shared nginx container, starting it
// if needed. The container is shared across all tests for performance.
func getServer(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	serverOnce.Do(func() {
		dir, err := os.MkdirTemp("", "rangezip-integration-")
		if err != nil {
			serverErr = err
			return
		}
		if serverErr = writeFixtures(tb, dir); serverErr != nil {
			return
		}
		serverURL, serverErr = startServerContainer(context.Background(), dir)
	})

	if serverErr != nil {
		tb.Fatalf("start nginx container: %v", serverErr)
	}
	return serverURL
}

// writeFixtures writes the fixture archives into dir.
func writeFixtures(tb testing.TB, dir string) error {
	mixed := &testutil.Builder{Comment: []byte("served by nginx")}
	mixed.Add(testutil.File{Name: "docs/readme.txt", Data: bytes.Repeat([]byte("read me\n"), 500), Method: rangezip.Deflated})
	mixed.Add(testutil.File{Name: "data/table.bin", Data: bytes.Repeat([]byte{1, 2, 3, 4}, 5000), Method: rangezip.Zstd})
	mixed.Add(testutil.File{Name: "secret.txt", Data: []byte("top secret"), Password: "open sesame"})
	mixed.Add(testutil.File{Name: "../../etc/passwd", Data: []byte("root:x:0:0")})
	if err := os.WriteFile(filepath.Join(dir, mixedArchive), mixed.Build(tb).Data, 0o644); err != nil {
		return err
	}

	var buf bytes.Buffer
	w := kzip.NewWriter(&buf)
	fw, err := w.Create("large.bin")
	if err != nil {
		return err
	}
	if _, err := fw.Write(largeContent); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, largeArchive), buf.Bytes(), 0o644); err != nil {
		return err
	}

	prefixed := &testutil.Builder{Prefix: bytes.Repeat([]byte("#!stub\n"), 300)}
	prefixed.Add(testutil.File{Name: "payload.txt", Data: []byte("after the stub")})
	return os.WriteFile(filepath.Join(dir, prefixArchive), prefixed.Build(tb).Data, 0o644)
}

// startServerContainer starts nginx serving the files in dir and returns its base URL.
func startServerContainer(ctx context.Context, dir string) (string, error) {
	var files []testcontainers.ContainerFile
	for _, name := range []string{mixedArchive, largeArchive, prefixArchive} {
		files = append(files, testcontainers.ContainerFile{
			HostFilePath:      filepath.Join(dir, name),
			ContainerFilePath: "/usr/share/nginx/html/" + name,
			FileMode:          0o644,
		})
	}

	req := testcontainers.ContainerRequest{
		Image:        "nginx:1.27-alpine",
		ExposedPorts: []string{"80/tcp"},
		Files:        files,
		WaitingFor:   wait.ForHTTP("/" + mixedArchive).WithPort("80/tcp").WithStatusCodeMatcher(isOKStatus),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start nginx container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve nginx host: %w", err)
	}
	port, err := container.MappedPort(ctx, "80/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve nginx port: %w", err)
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// countingTransport records the Range header of every request.
type countingTransport struct {
	base   nethttp.RoundTripper
	mu     sync.Mutex
	ranges []string
}

func (c *countingTransport) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	if rng := req.Header.Get("Range"); rng != "" {
		c.mu.Lock()
		c.ranges = append(c.ranges, rng)
		c.mu.Unlock()
	}
	return c.base.RoundTrip(req)
}

func (c *countingTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ranges)
}

// openRemote opens the named fixture through the HTTP source.
func openRemote(tb testing.TB, name string, opts ...rangezip.Option) (*rangezip.Archive, *countingTransport) {
	tb.Helper()
	ct := &countingTransport{base: nethttp.DefaultTransport}
	src, err := zhttp.NewSource(getServer(tb)+"/"+name, zhttp.WithClient(&nethttp.Client{Transport: ct}))
	require.NoError(tb, err)
	a, err := rangezip.Open(src, opts...)
	require.NoError(tb, err)
	return a, ct
}

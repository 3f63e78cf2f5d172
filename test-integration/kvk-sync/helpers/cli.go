package helpers

import (
	"bytes"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/kvk-connect/kvk-sync/cmd/kvk-sync/app"
	"github.com/kvk-connect/kvk-sync/internal/db"
)

// Environment points the kvk-sync CLI at a fake API and a SQLite file
type Environment struct {
	DatabasePath string
	API          *KvKServer
}

// NewEnvironment sets the KVK_* variables for api and a fresh SQLite database.
// The variables and the server are cleaned up when the current test ends.
func NewEnvironment(api *KvKServer) *Environment {
	env := &Environment{
		DatabasePath: filepath.Join(ginkgo.GinkgoT().TempDir(), "kvk.db"),
		API:          api,
	}
	vars := map[string]string{
		"KVK_API_KEY":               APIKey,
		"KVK_API_BASE_URL":          api.URL,
		"KVK_MUTATIE_ABONNEMENT_ID": api.AbonnementID,
		"KVK_DATABASE_URL":          env.DatabasePath,
		"KVK_LOG_LEVEL":             "warn",
	}
	for key, value := range vars {
		gomega.Expect(os.Setenv(key, value)).To(gomega.Succeed())
		ginkgo.DeferCleanup(os.Unsetenv, key)
	}
	ginkgo.DeferCleanup(api.Close)
	return env
}

// Run executes the CLI with args and returns what it printed
func (*Environment) Run(args ...string) (string, error) {
	cmd := app.NewRootCmd(new(slog.LevelVar))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(ginkgo.GinkgoWriter)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// MustRun executes the CLI and fails the test on error
func (e *Environment) MustRun(args ...string) string {
	out, err := e.Run(args...)
	gomega.ExpectWithOffset(1, err).NotTo(gomega.HaveOccurred(), "kvk-sync %v", args)
	return out
}

// Count returns the number of rows matching query
func (e *Environment) Count(query string, args ...any) int {
	target, err := db.ParseURL(e.DatabasePath)
	gomega.ExpectWithOffset(1, err).NotTo(gomega.HaveOccurred())
	conn, err := sql.Open(target.DriverName(), target.DSN)
	gomega.ExpectWithOffset(1, err).NotTo(gomega.HaveOccurred())
	defer func() { _ = conn.Close() }()

	var n int
	gomega.ExpectWithOffset(1, conn.QueryRow(query, args...).Scan(&n)).To(gomega.Succeed())
	return n
}

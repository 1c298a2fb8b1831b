package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/campusnotes/notes-admin/internal/models"
)

const seedFile = `
admins:
  - email: head@uni.edu
    name: Head Admin
    password: change-me-now
departments:
  - code: CE
    name: Computer Engineering
semesters:
  - number: 1
    name: First
subjects:
  - code: CE-101
    name: Programming Fundamentals
    department: CE
    semester: 1
`

// testCmd returns a command whose output is captured
func testCmd() (*cobra.Command, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetContext(context.Background())
	return cmd, out
}

func writeSeedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedFile), 0o600); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

// TestSeedCommand_CommandStructure tests the command structure
func TestSeedCommand_CommandStructure(t *testing.T) {
	cmd := NewSeedCmd()

	if cmd.Use != "seed <file.yaml>" {
		t.Errorf("expected Use to be 'seed <file.yaml>', got %s", cmd.Use)
	}

	if err := cmd.Args(cmd, []string{}); err == nil {
		t.Error("expected error when no arguments provided, got nil")
	}
	if err := cmd.Args(cmd, []string{"seed.yaml"}); err != nil {
		t.Errorf("expected no error with one argument, got %v", err)
	}

	for _, name := range []string{"database", "dry-run"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag", name)
		}
	}
}

// TestSeedCommand_AppliesFile seeds a file database twice
func TestSeedCommand_AppliesFile(t *testing.T) {
	path := writeSeedFile(t)
	opts := seedOptions{database: filepath.Join(t.TempDir(), "admin.sqlite")}

	cmd, out := testCmd()
	if err := runSeed(cmd, path, opts); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if !strings.Contains(out.String(), "subjects     1 created, 0 existing") {
		t.Errorf("unexpected summary:\n%s", out.String())
	}

	cmd, out = testCmd()
	if err := runSeed(cmd, path, opts); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}
	if !strings.Contains(out.String(), "admins       0 created, 1 existing") {
		t.Errorf("expected the second run to find the admin, got:\n%s", out.String())
	}
}

// TestSeedCommand_DryRunWritesNothing tests that --dry-run leaves the database alone
func TestSeedCommand_DryRunWritesNothing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "admin.sqlite")

	cmd, out := testCmd()
	if err := runSeed(cmd, writeSeedFile(t), seedOptions{database: dbPath, dryRun: true}); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "Dry run") {
		t.Errorf("expected dry run notice, got:\n%s", out.String())
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Errorf("expected no database file at %s, stat returned %v", dbPath, err)
	}
}

// TestSeedCommand_MissingFile tests seeding from a file that does not exist
func TestSeedCommand_MissingFile(t *testing.T) {
	cmd, _ := testCmd()
	err := runSeed(cmd, filepath.Join(t.TempDir(), "missing.yaml"), seedOptions{database: filepath.Join(t.TempDir(), "a.sqlite")})
	if err == nil || !strings.HasPrefix(err.Error(), "failed to read seed file:") {
		t.Errorf("expected read error, got %v", err)
	}
}

// TestCreateAdminCommand_CommandStructure tests the command structure
func TestCreateAdminCommand_CommandStructure(t *testing.T) {
	cmd := NewCreateAdminCmd()

	if cmd.Use != "create-admin <email>" {
		t.Errorf("expected Use to be 'create-admin <email>', got %s", cmd.Use)
	}
	if err := cmd.Args(cmd, []string{"a@uni.edu", "b@uni.edu"}); err == nil {
		t.Error("expected error when multiple arguments provided, got nil")
	}
	for _, name := range []string{"database", "name", "password"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag", name)
		}
	}
}

// TestCreateAdminCommand_CreatesThenPromotes tests creating and then updating an admin
func TestCreateAdminCommand_CreatesThenPromotes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "admin.sqlite")

	cmd, out := testCmd()
	err := runCreateAdmin(cmd, "Root@Uni.edu", createAdminOptions{database: dbPath, name: "Root", password: "long-enough-pw"})
	if err != nil {
		t.Fatalf("create-admin failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "Created admin root@uni.edu") {
		t.Errorf("unexpected output: %s", out.String())
	}

	cmd, out = testCmd()
	err = runCreateAdmin(cmd, "root@uni.edu", createAdminOptions{database: dbPath, password: "another-long-pw"})
	if err != nil {
		t.Fatalf("second create-admin failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "Updated admin root@uni.edu") {
		t.Errorf("unexpected output: %s", out.String())
	}

	cat, closeDB, err := openCatalog(dbPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	defer closeDB()
	user, err := cat.UserByEmail(context.Background(), "root@uni.edu")
	if err != nil {
		t.Fatalf("admin not found: %v", err)
	}
	if user.Role != models.RoleAdmin || user.Name != "Root" {
		t.Errorf("expected admin named Root, got role=%s name=%s", user.Role, user.Name)
	}
}

// TestCreateAdminCommand_RequiresPassword tests that a password is mandatory
func TestCreateAdminCommand_RequiresPassword(t *testing.T) {
	cmd, _ := testCmd()
	err := runCreateAdmin(cmd, "root@uni.edu", createAdminOptions{database: filepath.Join(t.TempDir(), "a.sqlite")})
	if err == nil || !strings.Contains(err.Error(), passwordEnv) {
		t.Errorf("expected password error mentioning %s, got %v", passwordEnv, err)
	}
}

// TestCreateAdminCommand_InvalidEmail tests catalog validation surfaces to the operator
func TestCreateAdminCommand_InvalidEmail(t *testing.T) {
	cmd, _ := testCmd()
	err := runCreateAdmin(cmd, "not-an-email", createAdminOptions{database: filepath.Join(t.TempDir(), "a.sqlite"), password: "long-enough-pw"})
	if err == nil || !strings.Contains(err.Error(), "email") {
		t.Errorf("expected email validation error, got %v", err)
	}
}

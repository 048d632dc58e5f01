package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/synthbot/core/database"
)

type call struct {
	name string
	args []string
	env  []string
}

type fakeRunner struct {
	calls []call
	err   error
}

func (f *fakeRunner) run(_ context.Context, name string, args, env []string) error {
	f.calls = append(f.calls, call{name: name, args: args, env: env})
	if f.err != nil {
		return f.err
	}
	for i, a := range args {
		if a == "-f" && name == "pg_dump" {
			return os.WriteFile(args[i+1], []byte("-- dump"), 0o600)
		}
	}
	return nil
}

var testDB = database.Config{Host: "db", Port: "5432", User: "synth", Password: "secret", Name: "synthbot", SSLMode: "disable"}

func newTestService(t *testing.T, keep int) (*Service, *fakeRunner) {
	t.Helper()
	fr := &fakeRunner{}
	s := NewService(testDB, Options{Dir: filepath.Join(t.TempDir(), "backups"), Keep: keep}, fr.run)
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Hour)
		return clock
	}
	return s, fr
}

func TestCreateRunsPgDump(t *testing.T) {
	s, fr := newTestService(t, 0)

	b, err := s.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "synthbot_20240301_100000.sql", b.Name)
	assert.Equal(t, int64(len("-- dump")), b.Size)

	require.Len(t, fr.calls, 1)
	c := fr.calls[0]
	assert.Equal(t, "pg_dump", c.name)
	assert.Equal(t, []string{
		"-h", "db", "-p", "5432", "-U", "synth", "-d", "synthbot",
		"--clean", "--if-exists", "--no-owner", "-f", b.Path,
	}, c.args)
	assert.Contains(t, c.env, "PGPASSWORD=secret")
}

func TestCreateFailureLeavesNoFile(t *testing.T) {
	s, fr := newTestService(t, 0)
	fr.err = errors.New("connection refused")

	_, err := s.Create(context.Background())
	require.Error(t, err)

	list, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreatePrunesOldBackups(t *testing.T) {
	s, _ := newTestService(t, 2)
	for i := 0; i < 4; i++ {
		_, err := s.Create(context.Background())
		require.NoError(t, err)
	}

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "synthbot_20240301_130000.sql", list[0].Name)
	assert.Equal(t, "synthbot_20240301_120000.sql", list[1].Name)
}

func TestListIgnoresForeignFiles(t *testing.T) {
	s, _ := newTestService(t, 0)
	_, err := s.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.opts.Dir, "notes.txt"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(s.opts.Dir, "synthbot_latest.sql"), nil, 0o600))

	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListMissingDir(t *testing.T) {
	s, _ := newTestService(t, 0)
	list, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRestore(t *testing.T) {
	s, fr := newTestService(t, 0)
	b, err := s.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Restore(context.Background(), " "+b.Name+" "))
	require.Len(t, fr.calls, 2)
	c := fr.calls[1]
	assert.Equal(t, "psql", c.name)
	assert.Contains(t, c.args, "ON_ERROR_STOP=1")
	assert.Equal(t, b.Path, c.args[len(c.args)-1])
}

func TestRestoreRejectsBadNames(t *testing.T) {
	s, fr := newTestService(t, 0)
	for _, name := range []string{"", "../etc/passwd", "synthbot_20240301_100000.sql/..", "dump.sql"} {
		assert.ErrorIs(t, s.Restore(context.Background(), name), ErrInvalidName, name)
	}
	assert.Error(t, s.Restore(context.Background(), "synthbot_20240301_100000.sql"))
	assert.Empty(t, fr.calls)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 3 * * *"))
	assert.NoError(t, ValidateSchedule("@daily"))
	assert.Error(t, ValidateSchedule("every day"))
}

func TestRunScheduleDisabled(t *testing.T) {
	s, _ := newTestService(t, 0)
	assert.NoError(t, s.RunSchedule(context.Background()))
}

func TestRunScheduleStopsOnCancel(t *testing.T) {
	s, _ := newTestService(t, 0)
	s.opts.Schedule = "@every 1h"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunSchedule(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("schedule did not stop")
	}
}

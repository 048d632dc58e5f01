package cmd

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	coreconfig "github.com/m3rciful/synthbot/core/config"
	coretelegram "github.com/m3rciful/synthbot/core/telegram"
)

type stubConfig struct{ core *coreconfig.Config }

func (s stubConfig) CoreConfig() *coreconfig.Config { return s.core }

type stubApp struct {
	tasks []BackgroundTask
}

func (stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func (a stubApp) BackgroundTasks() []BackgroundTask { return a.tasks }

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("SYNTH_CONFIG", "/env/config.yaml")

	p, err := ResolveConfigPath(Options{ConfigPath: "/flag.yaml", ConfigEnvVar: "SYNTH_CONFIG"})
	require.NoError(t, err)
	assert.Equal(t, "/flag.yaml", p)

	p, err = ResolveConfigPath(Options{ConfigEnvVar: "SYNTH_CONFIG", DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "/env/config.yaml", p)

	p, err = ResolveConfigPath(Options{ConfigEnvVar: "SYNTH_UNSET", DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", p)

	_, err = ResolveConfigPath(Options{ConfigEnvVar: "SYNTH_UNSET"})
	assert.Error(t, err)
}

func TestSuperviseStopsTasksWhenMainReturns(t *testing.T) {
	defer goleak.VerifyNone(t)

	var stopped atomic.Bool
	task := BackgroundTask{Name: "probe", Run: func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Store(true)
		return nil
	}}
	err := supervise(context.Background(), func(context.Context) error { return nil }, []BackgroundTask{task})
	require.NoError(t, err)
	assert.True(t, stopped.Load())
}

func TestSuperviseTaskFailureCancelsMain(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("listen: address in use")
	task := BackgroundTask{Name: "health", Run: func(context.Context) error { return boom }}
	main := func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("main was not cancelled")
		}
	}
	err := supervise(context.Background(), main, []BackgroundTask{task})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "health")
}

func TestRunWiresTasksAndBot(t *testing.T) {
	defer goleak.VerifyNone(t)

	var taskRan, botRan atomic.Bool
	app := stubApp{tasks: []BackgroundTask{{Name: "cron", Run: func(ctx context.Context) error {
		taskRan.Store(true)
		<-ctx.Done()
		return nil
	}}}}

	err := Run(Options{
		ConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return stubConfig{core: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(context.Context, ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			botRan.Store(true)
			assert.NotNil(t, opts.OnStart)
			assert.NotNil(t, opts.OnStop)
			return nil
		},
	})
	require.NoError(t, err)
	assert.True(t, botRan.Load())
	assert.True(t, taskRan.Load())
}

func TestRunRequiresHooks(t *testing.T) {
	assert.Error(t, Run(Options{}))
	assert.Error(t, Run(Options{LoadConfig: func(string) (ConfigCarrier, error) { return nil, nil }}))
}

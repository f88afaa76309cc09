// Package runtime provides the per-invocation context of the timely CLI:
// settings, output formatting, and the alarm engine a command talks to.
package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/manav03panchal/timely/internal/config"
	"github.com/manav03panchal/timely/internal/daemon"
	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/output"
	"github.com/manav03panchal/timely/internal/storage"
)

// Alarms is the alarm surface commands drive. A running daemon serves it
// over its control API; otherwise a Local engine does.
type Alarms interface {
	List(ctx context.Context) ([]model.Alarm, error)
	Get(ctx context.Context, id int64) (model.Alarm, error)
	Create(ctx context.Context, in model.AlarmInput) (model.Alarm, error)
	Update(ctx context.Context, id int64, patch model.AlarmPatch) (model.Alarm, error)
	Delete(ctx context.Context, id int64) error
	Toggle(ctx context.Context, id int64, active bool) (model.Alarm, error)
	Sync(ctx context.Context) ([]model.Alarm, error)
}

// Account is the login surface commands drive.
type Account interface {
	Whoami(ctx context.Context) (model.User, bool, error)
	Login(ctx context.Context, usernameOrEmail, password string) (model.User, error)
	Register(ctx context.Context, username, email, password string) (model.User, error)
	Logout(ctx context.Context) error
}

// Context holds the application runtime context.
type Context struct {
	Settings  *config.Settings
	Formatter *output.Formatter
	Version   string

	// Debug mode
	Debug bool

	// daemonAddr returns the control address of a running daemon, or "".
	daemonAddr func() string
	db         *storage.DB
	local      *Local
}

// Options configures the runtime context.
type Options struct {
	ConfigFile string
	Format     output.Format
	ColorMode  output.ColorMode
	Debug      bool
	Version    string
}

// DefaultOptions returns default runtime options.
func DefaultOptions() Options {
	return Options{
		Format:    output.FormatCLI,
		ColorMode: output.ColorAuto,
	}
}

// New creates a new runtime context. The database is opened lazily.
func New(opts Options) (*Context, error) {
	settings, err := config.LoadSettings(opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	formatter := output.NewFormatter()
	formatter.Format = opts.Format
	formatter.ColorMode = opts.ColorMode

	c := &Context{
		Settings:  settings,
		Formatter: formatter,
		Version:   opts.Version,
		Debug:     opts.Debug,
	}
	c.daemonAddr = func() string {
		status := c.Daemon().GetStatus()
		if !status.Running {
			return ""
		}
		return status.Addr
	}
	return c, nil
}

// Daemon returns the manager of the background process.
func (c *Context) Daemon() *daemon.Daemon {
	d := daemon.New(c.Settings, c.Version)
	d.SetDebug(c.Debug)
	return d
}

// DB opens the database on first use. While a daemon holds it, the
// returned error is a user error naming the daemon's PID.
func (c *Context) DB() (*storage.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	path := c.Settings.Database
	db, err := storage.Open(storage.Options{Path: path, InMemory: path == ":memory:"})
	var lockErr *storage.LockError
	if errors.As(err, &lockErr) && lockErr.HeldByDaemon() {
		return nil, timelyerrors.NewUserError(lockErr.Error(),
			"Stop it with 'timely daemon stop', retry, then 'timely daemon start'.")
	}
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

// Local returns the in-process engine, building it on first use.
func (c *Context) Local() (*Local, error) {
	if c.local != nil {
		return c.local, nil
	}
	db, err := c.DB()
	if err != nil {
		return nil, err
	}
	l, err := NewLocal(db, c.Settings)
	if err != nil {
		return nil, err
	}
	c.local = l
	return l, nil
}

// Remote returns a control client when a daemon is serving, else nil.
func (c *Context) Remote() *daemon.Client {
	if addr := c.daemonAddr(); addr != "" {
		return daemon.NewClient(addr)
	}
	return nil
}

// Alarms returns the daemon's alarm surface when one is serving, or the
// in-process engine.
func (c *Context) Alarms() (Alarms, error) {
	if r := c.Remote(); r != nil {
		c.Debugf("using daemon at %s", c.daemonAddr())
		return r, nil
	}
	return c.Local()
}

// Account returns the login surface, preferring the daemon like Alarms.
func (c *Context) Account() (Account, error) {
	if r := c.Remote(); r != nil {
		return remoteAccount{r}, nil
	}
	return c.Local()
}

// Close drains the local engine and closes the database.
func (c *Context) Close() error {
	if c.local != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		c.local.Close(ctx)
		cancel()
		c.local = nil
	}
	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		return err
	}
	return nil
}

// CLIFormatter returns a CLI formatter.
func (c *Context) CLIFormatter() *output.CLIFormatter {
	return output.NewCLIFormatter(c.Formatter)
}

// JSONFormatter returns a JSON formatter.
func (c *Context) JSONFormatter() *output.JSONFormatter {
	return output.NewJSONFormatter(c.Formatter)
}

// IsJSON returns true if output format is JSON.
func (c *Context) IsJSON() bool {
	return c.Formatter.Format == output.FormatJSON
}

// IsCLI returns true if output format is CLI.
func (c *Context) IsCLI() bool {
	return c.Formatter.Format == output.FormatCLI
}

// Debugf prints debug output if debug mode is enabled.
func (c *Context) Debugf(format string, args ...interface{}) {
	if c.Debug {
		c.Formatter.Printf("[DEBUG] "+format+"\n", args...)
	}
}

// remoteAccount adapts the daemon client's whoami body.
type remoteAccount struct {
	*daemon.Client
}

func (r remoteAccount) Whoami(ctx context.Context) (model.User, bool, error) {
	body, err := r.Client.Whoami(ctx)
	if err != nil || !body.Authenticated || body.User == nil {
		return model.User{}, false, err
	}
	return *body.User, true, nil
}

// Package doctor checks a hookbox configuration, and optionally its
// database, for mistakes and risky settings.
package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mattjoyce/hookbox/internal/config"
	"github.com/mattjoyce/hookbox/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config
	db  *storage.DB
}

// New creates a Doctor. db may be nil, in which case database checks are skipped.
func New(cfg *config.Config, db *storage.DB) *Doctor {
	return &Doctor{cfg: cfg, db: db}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.validateState(r)
	d.validateServer(r)
	d.warnPermissiveAuth(r)
	d.warnRateLimit(r)
	d.warnUnresolvedEnvVars(r)
	d.checkDatabase(ctx, r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateState checks the storage settings can be used.
func (d *Doctor) validateState(r *Result) {
	switch d.cfg.State.Driver {
	case "postgres":
		if _, err := pgconn.ParseConfig(d.cfg.State.DSN); err != nil {
			d.addError(r, "state", "state.dsn", fmt.Sprintf("invalid postgres dsn: %v", err))
		}
	default:
		if d.cfg.State.Path == "" {
			d.addError(r, "state", "state.path", "state.path is required")
			return
		}
		var nfsErr *storage.NetworkFSError
		if err := storage.CheckSQLitePath(d.cfg.State.Path); errors.As(err, &nfsErr) {
			d.addError(r, "state", "state.path", nfsErr.Error())
			return
		}
		dir := filepath.Dir(d.cfg.State.Path)
		if info, err := os.Stat(dir); err != nil {
			d.addWarning(r, "state", "state.path",
				fmt.Sprintf("directory %s does not exist yet; it will be created on start", dir))
		} else if !info.IsDir() {
			d.addError(r, "state", "state.path", fmt.Sprintf("%s is not a directory", dir))
		}
	}
}

// validateServer checks the listener and public URL settings.
func (d *Doctor) validateServer(r *Result) {
	host, _, err := net.SplitHostPort(d.cfg.Server.Listen)
	if err != nil {
		d.addError(r, "server", "server.listen", fmt.Sprintf("invalid listen address: %v", err))
		return
	}
	if !isLoopback(host) && d.cfg.Server.PublicURL == "" {
		d.addWarning(r, "server", "server.public_url",
			"listening on a non-loopback address without public_url; ingestion URLs will be derived from the request Host header")
	}
	if d.cfg.Server.WriteTimeout > 0 && d.cfg.Server.WriteTimeout < time.Second {
		d.addWarning(r, "server", "server.write_timeout",
			fmt.Sprintf("write_timeout %s is very short", d.cfg.Server.WriteTimeout))
	}
}

// warnPermissiveAuth flags that endpoints accept calls without a token.
func (d *Doctor) warnPermissiveAuth(r *Result) {
	if d.cfg.PermissiveAuth() {
		d.addWarning(r, "security", "webhooks.auth_policy",
			"permissive: calls without a bearer token are accepted by any active endpoint; set require_token to enforce tokens")
	}
}

// warnRateLimit flags rate limits that are unlikely to be intended.
func (d *Doctor) warnRateLimit(r *Result) {
	rl := d.cfg.Webhooks.RateLimit
	if rl.Requests == 0 {
		return
	}
	if rl.Window > 0 && rl.Window < time.Second {
		d.addWarning(r, "webhooks", "webhooks.rate_limit.window",
			fmt.Sprintf("window %s is shorter than a second", rl.Window))
	}
}

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// warnUnresolvedEnvVars reports ${VAR} references left after interpolation.
func (d *Doctor) warnUnresolvedEnvVars(r *Result) {
	fields := map[string]string{
		"state.path":        d.cfg.State.Path,
		"state.dsn":         d.cfg.State.DSN,
		"server.listen":     d.cfg.Server.Listen,
		"server.public_url": d.cfg.Server.PublicURL,
	}
	for _, field := range []string{"state.path", "state.dsn", "server.listen", "server.public_url"} {
		for _, m := range envVarRe.FindAllStringSubmatch(fields[field], -1) {
			d.addError(r, "env_vars", field, fmt.Sprintf("environment variable ${%s} not set", m[1]))
		}
	}
}

// checkDatabase pings the database and reports missing tables.
func (d *Doctor) checkDatabase(ctx context.Context, r *Result) {
	if d.db == nil {
		return
	}
	if err := d.db.Ping(ctx); err != nil {
		d.addError(r, "database", "", fmt.Sprintf("database unreachable: %v", err))
		return
	}
	missing, err := storage.MissingTables(ctx, d.db)
	if err != nil {
		d.addError(r, "database", "", fmt.Sprintf("schema check failed: %v", err))
		return
	}
	if len(missing) > 0 {
		d.addWarning(r, "database", "",
			fmt.Sprintf("missing tables %s; they are created on start", strings.Join(missing, ", ")))
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

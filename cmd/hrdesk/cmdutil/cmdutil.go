// Package cmdutil holds the plumbing every hrdesk command shares: resolving
// the acting principal, the logger, the layered configuration, and the
// wired desk service.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/hrdesk/pkg/config"
	"github.com/papercomputeco/hrdesk/pkg/desk"
	"github.com/papercomputeco/hrdesk/pkg/dotdir"
	"github.com/papercomputeco/hrdesk/pkg/logger"
	"github.com/papercomputeco/hrdesk/pkg/roles"
)

// Persistent flag names registered on the root command.
const (
	FlagDebug     = "debug"
	FlagConfigDir = "config-dir"
	FlagUser      = "as-user"
	FlagRole      = "as-role"
	FlagTeamLead  = "team-lead"
)

// ErrNoPrincipal is returned when neither flags nor a saved session say who
// is acting.
var ErrNoPrincipal = errors.New("no principal: run \"hrdesk login\" or pass --as-user and --as-role")

// ConfigDir returns the --config-dir override, or "" for dotdir resolution.
func ConfigDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString(FlagConfigDir)
	return dir
}

// EnvLogFormat overrides the log format: text, json or pretty.
const EnvLogFormat = "HRDESK_LOG_FORMAT"

// Logger builds the command logger on stderr. Output is colorized when stderr
// is a terminal unless EnvLogFormat says otherwise.
func Logger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool(FlagDebug)

	format := logger.FormatText
	if term.IsTerminal(int(os.Stderr.Fd())) {
		format = logger.FormatPretty
	}
	if env := os.Getenv(EnvLogFormat); env != "" {
		if f, err := logger.ParseFormat(env); err == nil {
			format = f
		}
	}

	return logger.New(
		logger.WithDebug(debug),
		logger.WithFormat(format),
		logger.WithWriter(cmd.ErrOrStderr()),
	)
}

// Principal resolves who the command acts as. Flags win over the saved session.
func Principal(cmd *cobra.Command) (roles.Principal, error) {
	userID, _ := cmd.Flags().GetString(FlagUser)
	roleName, _ := cmd.Flags().GetString(FlagRole)
	teamLead, _ := cmd.Flags().GetString(FlagTeamLead)

	if userID != "" || roleName != "" {
		if userID == "" || roleName == "" {
			return roles.Principal{}, fmt.Errorf("--%s and --%s must be given together", FlagUser, FlagRole)
		}
		role, err := roles.Parse(roleName)
		if err != nil {
			return roles.Principal{}, err
		}
		return roles.Principal{UserID: userID, Role: role, TeamLead: teamLead}, nil
	}

	s, err := dotdir.NewManager().LoadSession(ConfigDir(cmd))
	if err != nil {
		return roles.Principal{}, fmt.Errorf("loading session: %w", err)
	}
	if s == nil {
		return roles.Principal{}, ErrNoPrincipal
	}
	return s.Principal(), nil
}

// LoadConfig resolves configuration through flags, HRDESK_* environment
// variables, config.toml and defaults. flagKeys are the config.Flags entries
// the command registered.
func LoadConfig(cmd *cobra.Command, flagKeys []string) (*config.Config, error) {
	v, err := config.InitViper(ConfigDir(cmd))
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// OpenDesk loads configuration and wires a desk service. The caller closes it.
func OpenDesk(ctx context.Context, cmd *cobra.Command, flagKeys []string, log *slog.Logger) (*desk.Service, error) {
	cfg, err := LoadConfig(cmd, flagKeys)
	if err != nil {
		return nil, err
	}
	return desk.New(ctx, desk.Options{
		Config:    cfg,
		ConfigDir: ConfigDir(cmd),
		Logger:    log,
	})
}

// BackendFlags are the config flags every command that opens a desk accepts.
var BackendFlags = []string{
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagLLMProvider,
	config.FlagLLMModel,
	config.FlagLLMTarget,
	config.FlagEventStreamProv,
	config.FlagBrokers,
}

// AddBackendFlags registers BackendFlags on cmd.
func AddBackendFlags(cmd *cobra.Command, o *BackendOptions) {
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &o.SQLitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &o.PostgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &o.VectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &o.VectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &o.EmbeddingProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &o.EmbeddingTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &o.EmbeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &o.EmbeddingDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMProvider, &o.LLMProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMModel, &o.LLMModel)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMTarget, &o.LLMTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStreamProv, &o.EventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &o.Brokers)
}

// BackendOptions receives the backend flag values. Commands read the
// resolved values through LoadConfig; these fields only back the flags.
type BackendOptions struct {
	SQLitePath        string
	PostgresDSN       string
	VectorProvider    string
	VectorTarget      string
	EmbeddingProvider string
	EmbeddingTarget   string
	EmbeddingModel    string
	EmbeddingDims     uint
	LLMProvider       string
	LLMModel          string
	LLMTarget         string
	EventStream       string
	Brokers           string
}

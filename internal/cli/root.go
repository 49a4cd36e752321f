package cli

import (
	"github.com/soyeahso/shopchat/internal/api"
	"github.com/soyeahso/shopchat/internal/config"
	"github.com/soyeahso/shopchat/internal/identity"
	"github.com/soyeahso/shopchat/internal/logging"
	"github.com/soyeahso/shopchat/internal/store"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shopchat",
		Short: "ShopChat — storefront shopping assistant in your terminal",
		Long:  "ShopChat talks to a storefront's AI assistant: ask about products, add them to your cart and place orders without leaving the terminal.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.shopchat/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newCartCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// runtime bundles the pieces every command needs: config, the local pointer
// store and an API client wired to the stored credential.
type runtime struct {
	cfg    config.Config
	db     *store.DB
	points store.PointerStore
	ids    *identity.Resolver
	api    *api.Client
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		log.Warn().Err(err).Msg("config load failed, using defaults")
		cfg = config.Defaults()
	}

	db, err := store.Open(paths.DB, log)
	if err != nil {
		return nil, err
	}

	points := store.NewSQLitePointerStore(db)
	ids := identity.NewResolver(points, log)

	token := func() string {
		if t := ids.Token(); t != "" {
			return t
		}
		return cfg.AuthToken
	}

	return &runtime{
		cfg:    cfg,
		db:     db,
		points: points,
		ids:    ids,
		api:    api.NewClient(cfg.ChatServiceURL, cfg.CommerceURL, token, log),
	}, nil
}

func (r *runtime) Close() error {
	return r.db.Close()
}

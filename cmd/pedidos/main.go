package main

import (
	"fmt"
	"os"

	"order-workflow/internal/app"
	"order-workflow/internal/authz"
	"order-workflow/internal/client"
	"order-workflow/internal/infrastructure"
	"order-workflow/internal/session"
	"order-workflow/internal/workflow"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pedidos",
		Usage: "cliente del flujo de pedidos",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Value:   "http://localhost:5000",
				EnvVars: []string{"PEDIDOS_API"},
				Usage:   "URL base de la API",
			},
			&cli.StringFlag{
				Name:    "token-file",
				EnvVars: []string{"PEDIDOS_TOKEN_FILE"},
				Usage:   "fichero donde se guarda la sesión",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: commands(),
	}
}

// controller builds the client stack from the global flags.
func controller(c *cli.Context) (*app.Controller, error) {
	path := c.String("token-file")
	if path == "" {
		var err error
		if path, err = client.DefaultTokenPath(); err != nil {
			return nil, err
		}
	}
	logger, err := infrastructure.NewLogger(c.String("log-level"), true)
	if err != nil {
		logger = zap.NewNop()
	}

	api := client.New(c.String("api"), client.NewFileTokenStore(path))
	sessions := session.NewManager(api, logger)
	authorizer, err := authz.New()
	if err != nil {
		return nil, err
	}
	return app.NewController(sessions, workflow.NewEngine(), authorizer, logger), nil
}

// restored returns a controller with the saved session loaded.
func restored(c *cli.Context) (*app.Controller, error) {
	ctrl, err := controller(c)
	if err != nil {
		return nil, err
	}
	if _, err := ctrl.Restore(c.Context); err != nil {
		return nil, fmt.Errorf("%w (ejecuta 'pedidos login')", err)
	}
	return ctrl, nil
}

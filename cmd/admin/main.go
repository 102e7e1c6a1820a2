package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ruteri/watchstate/cmd/flags"
	"github.com/ruteri/watchstate/db"
	"github.com/ruteri/watchstate/interfaces"
	"github.com/ruteri/watchstate/storage"
	"github.com/urfave/cli/v2"
)

var flagUser *cli.StringFlag = &cli.StringFlag{
	Name:     "user",
	Required: true,
	Usage:    "User name to operate on",
}
var flagPassword *cli.StringFlag = &cli.StringFlag{
	Name:     "password",
	Required: true,
	Usage:    "Password for the user",
}
var flagYes *cli.BoolFlag = &cli.BoolFlag{
	Name:  "yes",
	Usage: "Confirm a destructive operation",
}

// openManager selects the backend the same way the server does. Commands
// refuse to run against the empty backend unless it was asked for.
func openManager(cCtx *cli.Context) (*db.Manager, error) {
	logger := flags.SetupLogger(cCtx)

	cfg, err := flags.StorageConfig(cCtx)
	if err != nil {
		return nil, err
	}

	s := storage.NewStorageFactory(logger).StorageFor(cfg)
	mgr := db.NewWithStorage(s)
	if _, degraded := s.(*storage.EmptyStorage); degraded {
		if st, ok := interfaces.ParseStorageType(cfg.Type); !ok || st != interfaces.StorageTypeNone {
			return nil, fmt.Errorf("storage %q is unavailable", cfg.Type)
		}
	}
	return mgr, nil
}

func withManager(fn func(ctx context.Context, cCtx *cli.Context, mgr *db.Manager) error) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		mgr, err := openManager(cCtx)
		if err != nil {
			return err
		}
		defer mgr.Close()
		return fn(cCtx.Context, cCtx, mgr)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	app := &cli.App{
		Name:           "watchstate-admin",
		Usage:          "Inspect and maintain watch-state storage",
		DefaultCommand: "check",
		Flags: append([]cli.Flag{
			flags.LogJsonFlag,
			flags.LogDebugFlag,
			flags.LogServiceFlagFn("watchstate-admin"),
		}, flags.StorageFlags...),
		Commands: []*cli.Command{
			&cli.Command{
				Name:  "check",
				Usage: "Report which backend the configuration selects",
				Action: withManager(func(ctx context.Context, cCtx *cli.Context, mgr *db.Manager) error {
					fmt.Println(mgr.StorageName())
					return nil
				}),
			},
			&cli.Command{
				Name:  "users",
				Usage: "List registered users",
				Action: withManager(func(ctx context.Context, cCtx *cli.Context, mgr *db.Manager) error {
					users, err := mgr.GetAllUsers(ctx)
					if err != nil {
						return err
					}
					for _, user := range users {
						fmt.Println(user)
					}
					return nil
				}),
			},
			&cli.Command{
				Name:  "add-user",
				Usage: "Register a user",
				Flags: []cli.Flag{
					flagUser,
					flagPassword,
				},
				Action: withManager(func(ctx context.Context, cCtx *cli.Context, mgr *db.Manager) error {
					user := cCtx.String(flagUser.Name)
					exists, err := mgr.CheckUserExist(ctx, user)
					if err != nil {
						return err
					}
					if exists {
						return fmt.Errorf("user %q already exists", user)
					}
					return mgr.RegisterUser(ctx, user, cCtx.String(flagPassword.Name))
				}),
			},
			&cli.Command{
				Name:  "set-password",
				Usage: "Change the password of an existing user",
				Flags: []cli.Flag{
					flagUser,
					flagPassword,
				},
				Action: withManager(func(ctx context.Context, cCtx *cli.Context, mgr *db.Manager) error {
					user := cCtx.String(flagUser.Name)
					exists, err := mgr.CheckUserExist(ctx, user)
					if err != nil {
						return err
					}
					if !exists {
						return fmt.Errorf("user %q does not exist", user)
					}
					return mgr.ChangePassword(ctx, user, cCtx.String(flagPassword.Name))
				}),
			},
			&cli.Command{
				Name:  "delete-user",
				Usage: "Delete a user with all their records",
				Flags: []cli.Flag{
					flagUser,
				},
				Action: withManager(func(ctx context.Context, cCtx *cli.Context, mgr *db.Manager) error {
					return mgr.DeleteUser(ctx, cCtx.String(flagUser.Name))
				}),
			},
			&cli.Command{
				Name:  "get-config",
				Usage: "Print the admin configuration as JSON",
				Action: withManager(func(ctx context.Context, cCtx *cli.Context, mgr *db.Manager) error {
					config, err := mgr.GetAdminConfig(ctx)
					if err != nil {
						return err
					}
					if config == nil {
						return errors.New("no admin configuration stored")
					}
					return printJSON(config)
				}),
			},
			&cli.Command{
				Name:      "set-config",
				Usage:     "Replace the admin configuration from a JSON file",
				ArgsUsage: "<config.json>",
				Action: withManager(func(ctx context.Context, cCtx *cli.Context, mgr *db.Manager) error {
					if cCtx.NArg() != 1 {
						return errors.New("expected exactly one config file")
					}
					data, err := os.ReadFile(cCtx.Args().First())
					if err != nil {
						return err
					}

					var config interfaces.AdminConfig
					if err := json.Unmarshal(data, &config); err != nil {
						return fmt.Errorf("invalid admin config: %w", err)
					}
					return mgr.SaveAdminConfig(ctx, config)
				}),
			},
			&cli.Command{
				Name:  "clear",
				Usage: "Delete every user and the admin configuration",
				Flags: []cli.Flag{
					flagYes,
				},
				Action: withManager(func(ctx context.Context, cCtx *cli.Context, mgr *db.Manager) error {
					if !cCtx.Bool(flagYes.Name) {
						return errors.New("refusing to clear storage without --yes")
					}
					return mgr.ClearAllData(ctx)
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sqliteadapter "github.com/atvirokodosprendimai/siteops/internal/adapters/db/sqlite"
	httpadapter "github.com/atvirokodosprendimai/siteops/internal/adapters/http"
	rpcadapter "github.com/atvirokodosprendimai/siteops/internal/adapters/rpcjson"
	"github.com/atvirokodosprendimai/siteops/internal/application"
	"github.com/atvirokodosprendimai/siteops/internal/config"
	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/atvirokodosprendimai/siteops/internal/logging"
	"github.com/atvirokodosprendimai/siteops/internal/metrics"
	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "siteops",
		Usage: "Construction site operations server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			authCommand(),
			refsCommand(),
			sitesCommand(),
			equipmentCommand(),
			personnelCommand(),
			assignmentsCommand(),
			expensesCommand(),
			importCommand(),
			auditCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		logrus.Fatal(err)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP and JSON-RPC servers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Usage: "env file to load before reading SITEOPS_* variables"},
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-path", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			var envFiles []string
			if c.IsSet("env-file") {
				envFiles = []string{c.String("env-file")}
			}
			cfg, err := config.Load(envFiles...)
			if err != nil {
				return err
			}
			if c.IsSet("addr") {
				cfg.HTTPAddr = c.String("addr")
			}
			if c.IsSet("rpc-socket") {
				cfg.RPCSocket = c.String("rpc-socket")
			}
			if c.IsSet("db-path") {
				cfg.DBPath = c.String("db-path")
			}
			if c.IsSet("log-level") {
				cfg.LogLevel = c.String("log-level")
			}
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	db, err := sqliteadapter.Open(cfg.DBPath, log)
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewRecorder(reg)

	service := application.NewERPService(sqliteadapter.NewStore(db), rec)
	if err := service.BootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		return errors.Wrap(err, "bootstrap admin")
	}

	router := httpadapter.NewRouter(service, httpadapter.Options{
		Logger:        log,
		Metrics:       rec,
		CORSOrigins:   cfg.CORSOrigins,
		SessionTTL:    cfg.SessionDuration,
		MaxUploadSize: cfg.MaxUploadSize,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(cfg.RPCSocket, service, log)
	if err != nil {
		return err
	}
	defer func() {
		_ = rpcSrv.Close()
	}()
	log.WithField("socket", cfg.RPCSocket).Info("json-rpc listening")

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

var jsonFlag = &cli.BoolFlag{Name: "json", Usage: "output raw JSON"}

// setStrings copies the flags the user set into params under their JSON
// names. Flags left at their zero value are omitted so partial updates
// and decimal fields stay untouched.
func setStrings(c *cli.Command, params map[string]any, names map[string]string) {
	for flag, key := range names {
		if c.IsSet(flag) {
			params[key] = c.String(flag)
		}
	}
}

func setUints(c *cli.Command, params map[string]any, names map[string]string) {
	for flag, key := range names {
		if c.IsSet(flag) {
			params[key] = c.Uint(flag)
		}
	}
}

func setActive(c *cli.Command, params map[string]any) {
	if c.IsSet("active") {
		params["active"] = c.Bool("active")
	}
}

// activeFilter leaves the filter to the server, which lists active rows
// unless told otherwise.
func activeFilter(c *cli.Command) any {
	switch {
	case c.Bool("all"):
		return "all"
	case c.IsSet("active"):
		v := c.Bool("active")
		return &v
	}
	return nil
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authentication commands",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Login and store CLI token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Value: transportUDS, Usage: "uds or http"},
					&cli.StringFlag{Name: "server", Value: defaultServer},
					&cli.StringFlag{Name: "socket", Value: defaultSocket},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "token-name", Value: "cli"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := cliConfig{Transport: c.String("transport"), Server: c.String("server"), Socket: c.String("socket")}
					if cfg.Transport != transportUDS && cfg.Transport != transportHTTP {
						return fmt.Errorf("unknown transport %q", cfg.Transport)
					}
					var out struct {
						Token string `json:"token"`
						Email string `json:"email"`
					}
					if err := doLogin(ctx, cfg, c.String("email"), c.String("password"), c.String("token-name"), &out); err != nil {
						return err
					}
					cfg.Token = out.Token
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Printf("logged in as %s\n", out.Email)
					return nil
				},
			},
			{
				Name:  "whoami",
				Usage: "Show current authenticated user",
				Flags: []cli.Flag{jsonFlag},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out map[string]any
					if err := doWhoAmI(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					fmt.Printf("%v (id %v)\n", out["email"], out["id"])
					return nil
				},
			},
			{
				Name:  "logout",
				Usage: "Revoke the session and forget the stored token",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if err := doLogout(ctx, cfg); err != nil {
						return err
					}
					cfg.Token = ""
					return saveConfig(cfg)
				},
			},
		},
	}
}

func refsCommand() *cli.Command {
	return &cli.Command{
		Name:  "refs",
		Usage: "Reference tables (clients, suppliers, categories, org units)",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List references of one kind",
				ArgsUsage: "<kind>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "q"},
					&cli.IntFlag{Name: "limit", Value: 200},
					jsonFlag,
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					kind := c.Args().First()
					if kind == "" {
						return errors.New("kind is required")
					}
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Reference
					if err := doListReferences(ctx, cfg, kind, c.String("q"), int(c.Int("limit")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printReferences(out)
					return nil
				},
			},
			{
				Name:      "resolve",
				Usage:     "Find a reference by key or create it",
				ArgsUsage: "<kind> <key>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "label"},
					&cli.StringFlag{Name: "code"},
					&cli.UintFlag{Name: "parent-id"},
					jsonFlag,
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() < 2 {
						return errors.New("kind and key are required")
					}
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					params := map[string]any{"key": c.Args().Get(1)}
					setStrings(c, params, map[string]string{"label": "label", "code": "code"})
					setUints(c, params, map[string]string{"parent-id": "parent_id"})
					var out domain.Reference
					if err := doResolveReference(ctx, cfg, c.Args().First(), params, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printReferences([]domain.Reference{out})
					return nil
				},
			},
		},
	}
}

var siteFlags = map[string]string{
	"name":       "name",
	"type":       "site_type",
	"client":     "client",
	"location":   "location",
	"start-date": "start_date",
	"end-date":   "end_date",
	"status":     "status",
}

func sitesCommand() *cli.Command {
	fields := []cli.Flag{
		&cli.StringFlag{Name: "name"},
		&cli.StringFlag{Name: "type", Usage: "USINE, CHANTIER, DEPOT or BUREAU"},
		&cli.StringFlag{Name: "client"},
		&cli.StringFlag{Name: "location"},
		&cli.StringFlag{Name: "start-date", Usage: "YYYY-MM-DD"},
		&cli.StringFlag{Name: "end-date", Usage: "YYYY-MM-DD"},
		&cli.UintFlag{Name: "manager-id"},
		&cli.StringFlag{Name: "status", Usage: "EN_COURS, TERMINE, PLANIFIE or SUSPENDU"},
		&cli.BoolFlag{Name: "active"},
		jsonFlag,
	}
	write := func(ctx context.Context, c *cli.Command, params map[string]any, id uint) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setStrings(c, params, siteFlags)
		setUints(c, params, map[string]string{"manager-id": "manager_id"})
		setActive(c, params)
		var out domain.Site
		if id == 0 {
			err = sitesResource.create(ctx, cfg, params, &out)
		} else {
			err = sitesResource.update(ctx, cfg, id, params, &out)
		}
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(out)
		}
		printSite(out)
		return nil
	}

	return &cli.Command{
		Name:  "sites",
		Usage: "Construction sites",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List sites",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type"},
					&cli.StringFlag{Name: "status"},
					&cli.BoolFlag{Name: "active"},
					&cli.BoolFlag{Name: "all", Usage: "include deactivated rows"},
					&cli.IntFlag{Name: "limit", Value: 200},
					jsonFlag,
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					filter := map[string]any{"site_type": c.String("type"), "status": c.String("status"), "active": activeFilter(c), "limit": int(c.Int("limit"))}
					var out []domain.Site
					if err := sitesResource.list(ctx, cfg, filter, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printSites(out)
					return nil
				},
			},
			getCommand("site", func(ctx context.Context, cfg cliConfig, id uint, asJSON bool) error {
				var out domain.Site
				if err := sitesResource.get(ctx, cfg, id, &out); err != nil {
					return err
				}
				if asJSON {
					return printJSON(out)
				}
				printSite(out)
				return nil
			}),
			{
				Name:      "create",
				Usage:     "Create a site",
				ArgsUsage: "<code>",
				Flags:     fields,
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().First() == "" {
						return errors.New("code is required")
					}
					return write(ctx, c, map[string]any{"code": c.Args().First()}, 0)
				},
			},
			{
				Name:      "update",
				Usage:     "Change the given fields of a site",
				ArgsUsage: "<id>",
				Flags:     fields,
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := argID(c)
					if err != nil {
						return err
					}
					return write(ctx, c, map[string]any{}, id)
				},
			},
			deleteCommand("site", sitesResource),
		},
	}
}

var equipmentFlags = map[string]string{
	"registration":   "registration",
	"category":       "category_code",
	"meter-unit":     "meter_unit",
	"usage-source":   "usage_source",
	"fuel-per-hour":  "fuel_per_hour",
	"cost-per-hour":  "hourly_usage_cost",
	"cost-per-100km": "per_100km_usage_cost",
}

func equipmentCommand() *cli.Command {
	fields := []cli.Flag{
		&cli.StringFlag{Name: "registration"},
		&cli.StringFlag{Name: "category", Usage: "category code"},
		&cli.StringFlag{Name: "meter-unit", Usage: "H or KM"},
		&cli.StringFlag{Name: "usage-source"},
		&cli.StringFlag{Name: "fuel-per-hour"},
		&cli.StringFlag{Name: "cost-per-hour"},
		&cli.StringFlag{Name: "cost-per-100km"},
		&cli.UintFlag{Name: "home-site-id"},
		&cli.BoolFlag{Name: "active"},
		jsonFlag,
	}
	write := func(ctx context.Context, c *cli.Command, params map[string]any, id uint) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setStrings(c, params, equipmentFlags)
		setUints(c, params, map[string]string{"home-site-id": "home_site_id"})
		setActive(c, params)
		var out domain.Equipment
		if id == 0 {
			err = equipmentResource.create(ctx, cfg, params, &out)
		} else {
			err = equipmentResource.update(ctx, cfg, id, params, &out)
		}
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(out)
		}
		printEquipment(out)
		return nil
	}

	return &cli.Command{
		Name:  "equipment",
		Usage: "Equipment fleet",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List equipment",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "category"},
					&cli.BoolFlag{Name: "active"},
					&cli.BoolFlag{Name: "all", Usage: "include deactivated rows"},
					&cli.IntFlag{Name: "limit", Value: 200},
					jsonFlag,
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					filter := map[string]any{"category": c.String("category"), "active": activeFilter(c), "limit": int(c.Int("limit"))}
					var out []domain.Equipment
					if err := equipmentResource.list(ctx, cfg, filter, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printEquipmentList(out)
					return nil
				},
			},
			getCommand("equipment", func(ctx context.Context, cfg cliConfig, id uint, asJSON bool) error {
				var out domain.Equipment
				if err := equipmentResource.get(ctx, cfg, id, &out); err != nil {
					return err
				}
				if asJSON {
					return printJSON(out)
				}
				printEquipment(out)
				return nil
			}),
			{
				Name:      "create",
				Usage:     "Register equipment",
				ArgsUsage: "<code>",
				Flags:     fields,
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().First() == "" {
						return errors.New("code is required")
					}
					return write(ctx, c, map[string]any{"code": c.Args().First()}, 0)
				},
			},
			{
				Name:      "update",
				Usage:     "Change the given fields of equipment",
				ArgsUsage: "<id>",
				Flags:     fields,
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := argID(c)
					if err != nil {
						return err
					}
					return write(ctx, c, map[string]any{}, id)
				},
			},
			deleteCommand("equipment", equipmentResource),
		},
	}
}

var personFlags = map[string]string{
	"name":              "full_name",
	"sector":            "sector",
	"division":          "division",
	"service":           "service",
	"function":          "function",
	"function-code":     "function_code",
	"base-salary":       "base_salary",
	"salary-supplement": "salary_supplement",
	"hourly-rate":       "hourly_cost_rate",
}

func personnelCommand() *cli.Command {
	fields := []cli.Flag{
		&cli.StringFlag{Name: "name"},
		&cli.StringFlag{Name: "sector"},
		&cli.StringFlag{Name: "division"},
		&cli.StringFlag{Name: "service"},
		&cli.StringFlag{Name: "function"},
		&cli.StringFlag{Name: "function-code"},
		&cli.StringFlag{Name: "base-salary"},
		&cli.StringFlag{Name: "salary-supplement"},
		&cli.StringFlag{Name: "hourly-rate", Usage: "overrides the rate derived from salary"},
		&cli.BoolFlag{Name: "active"},
		jsonFlag,
	}
	write := func(ctx context.Context, c *cli.Command, params map[string]any, id uint) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setStrings(c, params, personFlags)
		setActive(c, params)
		var out domain.Person
		if id == 0 {
			err = personnelResource.create(ctx, cfg, params, &out)
		} else {
			err = personnelResource.update(ctx, cfg, id, params, &out)
		}
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(out)
		}
		printPerson(out)
		return nil
	}

	return &cli.Command{
		Name:  "personnel",
		Usage: "Employees and operators",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List personnel",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "q"},
					&cli.StringFlag{Name: "division"},
					&cli.BoolFlag{Name: "active"},
					&cli.BoolFlag{Name: "all", Usage: "include deactivated rows"},
					&cli.IntFlag{Name: "limit", Value: 200},
					jsonFlag,
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					filter := map[string]any{"q": c.String("q"), "division": c.String("division"), "active": activeFilter(c), "limit": int(c.Int("limit"))}
					var out []domain.Person
					if err := personnelResource.list(ctx, cfg, filter, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printPersons(out)
					return nil
				},
			},
			getCommand("person", func(ctx context.Context, cfg cliConfig, id uint, asJSON bool) error {
				var out domain.Person
				if err := personnelResource.get(ctx, cfg, id, &out); err != nil {
					return err
				}
				if asJSON {
					return printJSON(out)
				}
				printPerson(out)
				return nil
			}),
			{
				Name:      "create",
				Usage:     "Add an employee",
				ArgsUsage: "<matricule>",
				Flags:     fields,
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().First() == "" {
						return errors.New("matricule is required")
					}
					return write(ctx, c, map[string]any{"matricule": c.Args().First()}, 0)
				},
			},
			{
				Name:      "update",
				Usage:     "Change the given fields of an employee",
				ArgsUsage: "<id>",
				Flags:     fields,
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := argID(c)
					if err != nil {
						return err
					}
					return write(ctx, c, map[string]any{}, id)
				},
			},
			deleteCommand("person", personnelResource),
		},
	}
}

func assignmentsCommand() *cli.Command {
	return &cli.Command{
		Name:  "assignments",
		Usage: "Half-day equipment assignments",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List assignments in a date range",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "YYYY-MM-DD"},
					&cli.StringFlag{Name: "to", Usage: "YYYY-MM-DD"},
					&cli.UintFlag{Name: "site-id"},
					&cli.UintFlag{Name: "equipment-id"},
					&cli.IntFlag{Name: "limit", Value: 200},
					jsonFlag,
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					filter := map[string]any{"from": c.String("from"), "to": c.String("to"), "limit": int(c.Int("limit"))}
					setUints(c, filter, map[string]string{"site-id": "site_id", "equipment-id": "equipment_id"})
					var out []domain.Assignment
					if err := doListAssignments(ctx, cfg, filter, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printAssignments(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Record equipment work for one half-day slot",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Required: true, Usage: "YYYY-MM-DD"},
					&cli.UintFlag{Name: "equipment-id", Required: true},
					&cli.UintFlag{Name: "site-id", Required: true},
					&cli.IntFlag{Name: "slot", Required: true, Usage: "1 (morning) or 2 (afternoon)"},
					&cli.UintFlag{Name: "operator-id"},
					&cli.UintFlag{Name: "activity-id"},
					&cli.StringFlag{Name: "reason"},
					&cli.StringFlag{Name: "hours", Value: "0"},
					&cli.StringFlag{Name: "km", Value: "0"},
					&cli.StringFlag{Name: "fuel", Value: "0"},
					jsonFlag,
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					in := map[string]any{
						"date":          c.String("date"),
						"equipment_id":  c.Uint("equipment-id"),
						"site_id":       c.Uint("site-id"),
						"half_day_slot": int(c.Int("slot")),
						"reason_code":   c.String("reason"),
						"hours_worked":  c.String("hours"),
						"km_driven":     c.String("km"),
						"fuel_liters":   c.String("fuel"),
					}
					setUints(c, in, map[string]string{"operator-id": "operator_id", "activity-id": "activity_id"})
					var out domain.Assignment
					if err := doCreateAssignment(ctx, cfg, in, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printAssignments([]domain.Assignment{out})
					return nil
				},
			},
		},
	}
}

func expensesCommand() *cli.Command {
	return &cli.Command{
		Name:  "expenses",
		Usage: "Equipment expenses",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List expenses",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "equipment-id"},
					&cli.StringFlag{Name: "from"},
					&cli.StringFlag{Name: "to"},
					&cli.IntFlag{Name: "limit", Value: 200},
					jsonFlag,
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					filter := map[string]any{"from": c.String("from"), "to": c.String("to"), "limit": int(c.Int("limit"))}
					setUints(c, filter, map[string]string{"equipment-id": "equipment_id"})
					var out []domain.Expense
					if err := doListExpenses(ctx, cfg, filter, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printExpenses(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Record an expense against equipment",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "equipment-id", Required: true},
					&cli.StringFlag{Name: "date", Required: true},
					&cli.StringFlag{Name: "type", Required: true},
					&cli.StringFlag{Name: "amount", Required: true, Usage: "amount excluding tax"},
					&cli.StringFlag{Name: "supplier"},
					&cli.StringFlag{Name: "description"},
					jsonFlag,
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					in := map[string]any{
						"equipment_id":    c.Uint("equipment-id"),
						"date":            c.String("date"),
						"expense_type":    c.String("type"),
						"amount_excl_tax": c.String("amount"),
						"supplier":        c.String("supplier"),
						"description":     c.String("description"),
					}
					var out domain.Expense
					if err := doCreateExpense(ctx, cfg, in, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printExpenses([]domain.Expense{out})
					return nil
				},
			},
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Bulk import a spreadsheet (xlsx or csv)",
		ArgsUsage: "<equipment|personnel|sites|expenses> <file>",
		Flags:     []cli.Flag{jsonFlag},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() < 2 {
				return errors.New("dataset and file are required")
			}
			dataset := domain.Dataset(c.Args().First())
			if !dataset.Valid() {
				return fmt.Errorf("unknown dataset %q", dataset)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var out domain.ImportReport
			if err := doImport(ctx, cfg, string(dataset), c.Args().Get(1), &out); err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(out)
			}
			printImportReport(out)
			return nil
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Audit log",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Show recent audit records",
				Flags: []cli.Flag{&cli.IntFlag{Name: "limit", Value: 50}, jsonFlag},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.AuditRecord
					if err := doListAuditLogs(ctx, cfg, int(c.Int("limit")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printAuditRecords(out)
					return nil
				},
			},
		},
	}
}

func getCommand(noun string, show func(context.Context, cliConfig, uint, bool) error) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one " + noun,
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{jsonFlag},
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := argID(c)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return show(ctx, cfg, id, c.Bool("json"))
		},
	}
}

func deleteCommand(noun string, res resource) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Deactivate a " + noun,
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := argID(c)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := res.remove(ctx, cfg, id); err != nil {
				return err
			}
			fmt.Printf("%s %d deactivated\n", noun, id)
			return nil
		},
	}
}

func argID(c *cli.Command) (uint, error) {
	var id uint
	if _, err := fmt.Sscanf(c.Args().First(), "%d", &id); err != nil || id == 0 {
		return 0, errors.New("a positive id argument is required")
	}
	return id, nil
}

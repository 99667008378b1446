package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron"
	"github.com/uptrace/bun"

	"github.com/mwhite/budgeteer/pkg/budgetchecks"
	"github.com/mwhite/budgeteer/pkg/config"
	"github.com/mwhite/budgeteer/pkg/csvimporter"
	"github.com/mwhite/budgeteer/pkg/reporting"
	"github.com/mwhite/budgeteer/pkg/sqlutils"
	"github.com/mwhite/budgeteer/pkg/transactionstore"
	"github.com/mwhite/budgeteer/pkg/vendorregistry"
)

type Runner interface {
	Run() error
}

var runner Runner

func main() {
	singleRun := flag.Bool("single-run", false, "run task once (disable cron)")
	configFile := flag.String("config", "./config.yml", "configuration file")
	secretsFile := flag.String("secrets", "./secrets.json", "secrets file")
	help := flag.Bool("help", false, "show command help")

	flag.Parse()

	if *help {
		fmt.Println("bank csv importer and budget checker")
		fmt.Println("budgeteer [options] task")
		fmt.Println("tasks: import, check, report, generate")
		flag.PrintDefaults()
		return
	}

	err := config.ReadConfig("BUDGETEER_CONFIG", *configFile, *secretsFile)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if flag.NArg() == 0 {
		fmt.Println("No task passed in")
		return
	}

	db, store, registry, err := setupStores()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer db.Close()

	budgetConfig := config.CurrentBudgetConfig()

	switch flag.Arg(0) {
	case "import":
		runner, err = csvimporter.NewImportCSVRunner(store, registry, budgetConfig.CSVFolder, budgetConfig.BankProfilesFile)
	case "check":
		runner = checkRunner{registry: registry}
	case "report":
		runner = reportRunner{store: store, registry: registry}
	case "generate":
		runner = generateRunner{}
	default:
		fmt.Printf("Unknown task %s\n", flag.Arg(0))
		return
	}

	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	run()

	if *singleRun {
		return
	}

	c := cron.New()
	c.AddFunc(budgetConfig.UpdateFrequency, run)

	c.Start()

	select {}
}

func run() {
	fmt.Println(time.Now().Format(time.RFC850))
	err := runner.Run()
	if err != nil {
		fmt.Println(err)
	}
}

func setupStores() (*bun.DB, *transactionstore.Store, *vendorregistry.Registry, error) {
	budgetConfig := config.CurrentBudgetConfig()

	var db *bun.DB
	var err error

	if budgetConfig.SQL.SQLiteFile != "" {
		db, err = sqlutils.CreateSQLiteClient(budgetConfig.SQL.SQLiteFile)
	} else {
		db, err = sqlutils.CreatePostgresClient(budgetConfig.SQL.BudgetDatabase)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("Error connecting to budget database: %w", err)
	}

	ctx := context.Background()

	store := transactionstore.NewStore(db)
	registry := vendorregistry.NewRegistry(db, store, budgetConfig.VendorsFile)

	if err := store.Migrate(ctx); err != nil {
		return nil, nil, nil, err
	}
	if err := registry.Migrate(ctx); err != nil {
		return nil, nil, nil, err
	}
	if err := registry.LoadVendors(ctx); err != nil {
		return nil, nil, nil, err
	}

	return db, store, registry, nil
}

type checkRunner struct {
	registry *vendorregistry.Registry
}

func (r checkRunner) Run() error {
	plans, err := budgetchecks.LoadBudgetPlans(config.CurrentBudgetConfig().BudgetPlansFile)
	if err != nil {
		return err
	}

	tags, err := r.registry.Tags(context.Background())
	if err != nil {
		return err
	}

	budgetchecks.RunChecks(plans, tags, vendorregistry.UnresolvedVendor)

	return nil
}

type reportRunner struct {
	store    *transactionstore.Store
	registry *vendorregistry.Registry
}

func (r reportRunner) Run() error {
	aggregator := reporting.NewAggregator(r.store, r.registry)

	totals, err := aggregator.SpendingByTag(context.Background())
	if err != nil {
		return err
	}

	for _, row := range totals {
		fmt.Printf("%s  %-20s %s\n", row.Month, row.Tag, row.Total)
	}

	secrets := config.CurrentInfluxSecrets()
	if secrets.InfluxEndpoint == "" {
		return nil
	}

	influxClient, err := reporting.CreateInfluxClient(secrets)
	if err != nil {
		return fmt.Errorf("Error connecting to influx: %w", err)
	}
	defer influxClient.Close()

	database := config.CurrentReportingConfig().InfluxDatabase
	if err := reporting.EnsureInfluxDatabase(influxClient, database); err != nil {
		return err
	}

	return reporting.ExportTotals(influxClient, database, totals)
}

type generateRunner struct{}

func (r generateRunner) Run() error {
	filename, err := csvimporter.GenerateExampleData(100, "", config.CurrentBudgetConfig().CSVFolder)
	if err != nil {
		return err
	}

	fmt.Printf("Wrote example data to %s\n", filename)

	return nil
}
